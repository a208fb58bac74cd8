// Package capture renders a web page in a headless browser and saves it as a PNG.
package capture

import (
	"os"
	"time"
)

// Environment variables read by RequestFromEnv.
const (
	EnvURL = "SCREENSHOT_URL"
	EnvOut = "SCREENSHOT_OUT"
)

const (
	DefaultURL    = "https://ionutale.github.io/calcolatore-mance-svelte/"
	DefaultOut    = "static/screenshot.png"
	DefaultWidth  = 1200
	DefaultHeight = 900
	// DefaultSettle gives late fonts and styles time to apply after network idle.
	DefaultSettle = 500 * time.Millisecond
)

// Viewport is the emulated window size of the page.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// DefaultViewport returns the 1200x900 viewport.
func DefaultViewport() Viewport {
	return Viewport{Width: DefaultWidth, Height: DefaultHeight}
}

// Request describes one page to capture.
type Request struct {
	URL      string
	Out      string
	Viewport Viewport
	Settle   time.Duration
	FullPage bool
}

// DefaultRequest returns a request with every field at its default.
func DefaultRequest() Request {
	return Request{
		URL:      DefaultURL,
		Out:      DefaultOut,
		Viewport: DefaultViewport(),
		Settle:   DefaultSettle,
	}
}

// RequestFromEnv builds a request from SCREENSHOT_URL and SCREENSHOT_OUT
// over the defaults.
func RequestFromEnv() Request {
	return DefaultRequest().WithEnv()
}

// WithEnv returns r with URL and Out replaced by SCREENSHOT_URL and
// SCREENSHOT_OUT. Unset and empty values leave the field as it is.
func (r Request) WithEnv() Request {
	if v := os.Getenv(EnvURL); v != "" {
		r.URL = v
	}
	if v := os.Getenv(EnvOut); v != "" {
		r.Out = v
	}
	return r
}

// withDefaults fills zero fields. A negative Settle disables the settle wait.
func (r Request) withDefaults() Request {
	if r.URL == "" {
		r.URL = DefaultURL
	}
	if r.Out == "" {
		r.Out = DefaultOut
	}
	if r.Viewport.Width <= 0 {
		r.Viewport.Width = DefaultWidth
	}
	if r.Viewport.Height <= 0 {
		r.Viewport.Height = DefaultHeight
	}
	if r.Settle == 0 {
		r.Settle = DefaultSettle
	}
	return r
}

// Result reports a finished capture.
type Result struct {
	RunID   string
	URL     string
	Out     string
	Size    int
	Elapsed time.Duration
}

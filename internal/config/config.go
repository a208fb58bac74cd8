package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pageshot/internal/browser"
	"pageshot/internal/capture"
	"pageshot/internal/logging"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = "pageshot.yaml"

// Config holds all pageshot configuration.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Browser BrowserConfig `yaml:"browser"`
	Batch   BatchConfig   `yaml:"batch"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// CaptureConfig configures the single page capture.
type CaptureConfig struct {
	URL               string           `yaml:"url"`
	Out               string           `yaml:"out"`
	Viewport          capture.Viewport `yaml:"viewport"`
	Settle            string           `yaml:"settle"`
	NavigationTimeout string           `yaml:"navigation_timeout"`
	FullPage          bool             `yaml:"full_page"`
}

// BrowserConfig configures how Chromium is obtained.
type BrowserConfig struct {
	Bin         string   `yaml:"bin,omitempty"`          // empty lets rod find or download one
	DebuggerURL string   `yaml:"debugger_url,omitempty"` // attach instead of launching
	Headless    bool     `yaml:"headless"`
	Flags       []string `yaml:"flags,omitempty"`
	IdleWindow  string   `yaml:"idle_window"`
}

// TargetConfig is one batch entry.
type TargetConfig struct {
	URL string `yaml:"url"`
	Out string `yaml:"out"`
}

// BatchConfig lists pages captured by `pageshot batch`.
type BatchConfig struct {
	Targets     []TargetConfig `yaml:"targets,omitempty"`
	Concurrency int            `yaml:"concurrency"`
}

// WatchConfig configures `capture --watch`.
type WatchConfig struct {
	Debounce string   `yaml:"debounce"`
	Ignore   []string `yaml:"ignore,omitempty"` // directory names skipped while walking
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file,omitempty"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			URL:               capture.DefaultURL,
			Out:               capture.DefaultOut,
			Viewport:          capture.DefaultViewport(),
			Settle:            capture.DefaultSettle.String(),
			NavigationTimeout: "30s",
		},
		Browser: BrowserConfig{
			Headless:   true,
			IdleWindow: "500ms",
		},
		Batch: BatchConfig{
			Concurrency: capture.DefaultConcurrency,
		},
		Watch: WatchConfig{
			Debounce: "300ms",
			Ignore:   []string{".git", "node_modules", ".svelte-kit", "build"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. SCREENSHOT_URL and SCREENSHOT_OUT are not folded in here; they
// apply on top of the file in CaptureRequest.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML. An existing file is only
// replaced when overwrite is set.
func (c *Config) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(saveHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

const saveHeader = `# pageshot configuration.
# SCREENSHOT_URL and SCREENSHOT_OUT override capture.url and capture.out.
# The build adapter is chosen from NODE_ENV only.
`

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capture.Viewport.Width < 0 || c.Capture.Viewport.Height < 0 {
		return fmt.Errorf("invalid viewport %dx%d", c.Capture.Viewport.Width, c.Capture.Viewport.Height)
	}
	for name, value := range map[string]string{
		"capture.settle":             c.Capture.Settle,
		"capture.navigation_timeout": c.Capture.NavigationTimeout,
		"browser.idle_window":        c.Browser.IdleWindow,
		"watch.debounce":             c.Watch.Debounce,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	for i, t := range c.Batch.Targets {
		if t.URL == "" || t.Out == "" {
			return fmt.Errorf("batch.targets[%d]: url and out are required", i)
		}
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("invalid batch.concurrency %d", c.Batch.Concurrency)
	}
	return nil
}

// GetSettle returns the settle interval as a duration.
func (c *Config) GetSettle() time.Duration {
	d, err := time.ParseDuration(c.Capture.Settle)
	if err != nil {
		return capture.DefaultSettle
	}
	return d
}

// GetNavigationTimeout returns the navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Capture.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleWindow returns the network idle window as a duration.
func (c *Config) GetIdleWindow() time.Duration {
	d, err := time.ParseDuration(c.Browser.IdleWindow)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetDebounce returns the watch debounce window as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// CaptureRequest returns the single page request described by the config,
// with SCREENSHOT_URL and SCREENSHOT_OUT applied on top.
func (c *Config) CaptureRequest() capture.Request {
	return capture.Request{
		URL:      c.Capture.URL,
		Out:      c.Capture.Out,
		Viewport: c.Capture.Viewport,
		Settle:   c.GetSettle(),
		FullPage: c.Capture.FullPage,
	}.WithEnv()
}

// BatchRequests returns one request per batch target, sharing the capture settings.
func (c *Config) BatchRequests() []capture.Request {
	reqs := make([]capture.Request, 0, len(c.Batch.Targets))
	for _, t := range c.Batch.Targets {
		req := c.CaptureRequest()
		req.URL = t.URL
		req.Out = t.Out
		reqs = append(reqs, req)
	}
	return reqs
}

// BrowserOptions maps the config onto the rod launcher settings.
func (c *Config) BrowserOptions() browser.Config {
	return browser.Config{
		Bin:                 c.Browser.Bin,
		DebuggerURL:         c.Browser.DebuggerURL,
		Flags:               c.Browser.Flags,
		Headless:            c.Browser.Headless,
		NavigationTimeoutMs: int(c.GetNavigationTimeout() / time.Millisecond),
		IdleWindowMs:        int(c.GetIdleWindow() / time.Millisecond),
	}
}

// LoggingOptions maps the config onto the logger settings.
func (c *Config) LoggingOptions(verbose bool) logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		Verbose:    verbose,
		Categories: c.Logging.Categories,
	}
}

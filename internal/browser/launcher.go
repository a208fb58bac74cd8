// Package browser launches or attaches to Chromium through go-rod and
// exposes it as a capture.Launcher.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pageshot/internal/capture"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	Bin                 string   `json:"bin"`
	DebuggerURL         string   `json:"debugger_url"`
	Flags               []string `json:"flags"`
	Headless            bool     `json:"headless"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	IdleWindowMs        int      `json:"idle_window_ms"`
}

// DefaultConfig returns a headless configuration with a 30s navigation
// budget and a 500ms network idle window.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		NavigationTimeoutMs: 30000,
		IdleWindowMs:        500,
	}
}

// NavigationTimeout bounds navigation plus the network idle wait.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// IdleWindow is how long the page must have no requests in flight.
func (c Config) IdleWindow() time.Duration {
	if c.IdleWindowMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.IdleWindowMs) * time.Millisecond
}

// Launcher starts a fresh Chromium per Launch call, or attaches to
// DebuggerURL when one is configured.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// Launch implements capture.Launcher.
func (l *Launcher) Launch(ctx context.Context) (capture.Browser, error) {
	controlURL := l.cfg.DebuggerURL
	var proc *launcher.Launcher

	if controlURL == "" {
		proc = l.newProcess().Context(ctx)
		u, err := proc.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		l.logger.Debug("Chrome launched", zap.String("control_url", controlURL))
	} else {
		l.logger.Debug("Attaching to running chrome", zap.String("control_url", controlURL))
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if proc != nil {
			proc.Kill()
			proc.Cleanup()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	return &Browser{
		browser: b,
		proc:    proc,
		cfg:     l.cfg,
		logger:  l.logger,
	}, nil
}

// newProcess builds the launcher for a local Chromium. Flags are written
// as on the command line, with or without leading dashes.
func (l *Launcher) newProcess() *launcher.Launcher {
	proc := launcher.New().Headless(l.cfg.Headless)
	if l.cfg.Bin != "" {
		proc = proc.Bin(l.cfg.Bin)
	}
	for _, raw := range l.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if name == "" {
			continue
		}
		if hasVal {
			proc = proc.Set(flags.Flag(name), val)
		} else {
			proc = proc.Set(flags.Flag(name))
		}
	}
	return proc
}

// Browser wraps a connected rod.Browser.
type Browser struct {
	browser *rod.Browser
	proc    *launcher.Launcher // nil when attached to an external browser
	cfg     Config
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPage opens a blank tab and applies the viewport before any navigation.
func (b *Browser) NewPage(ctx context.Context, vp capture.Viewport) (capture.Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport %dx%d: %w", vp.Width, vp.Height, err)
	}

	return &Page{page: page, cfg: b.cfg}, nil
}

// Close shuts the browser down. A launched process is killed and its
// profile removed; an attached browser is left running. Safe to call twice.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.proc == nil {
			return
		}
		b.closeErr = b.browser.Close()
		if b.closeErr != nil {
			b.logger.Debug("Browser close failed, killing process", zap.Error(b.closeErr))
			b.proc.Kill()
		}
		b.proc.Cleanup()
	})
	return b.closeErr
}

// Page wraps a rod.Page.
type Page struct {
	page *rod.Page
	cfg  Config
}

// idleExcludeTypes lists the only requests the idle wait does not count.
// They stay open for the page's lifetime and would never finish. Images,
// fonts and media do count, so the page is idle only once they loaded.
var idleExcludeTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
}

// Navigate loads url and waits until no request has been in flight for
// the idle window. Both steps share the navigation timeout.
func (p *Page) Navigate(ctx context.Context, url string) error {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.NavigationTimeout())
	defer cancel()

	page := p.page.Context(tctx)
	wait := page.WaitRequestIdle(p.cfg.IdleWindow(), nil, nil, idleExcludeTypes)
	if err := page.Navigate(url); err != nil {
		return err
	}
	wait()

	if err := tctx.Err(); err != nil {
		return fmt.Errorf("wait for network idle: %w", err)
	}
	return nil
}

// Screenshot captures a PNG.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close closes the tab, even after the capture context is done.
func (p *Page) Close() error {
	return p.page.Context(context.Background()).Close()
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many pages CaptureAll renders at once.
const DefaultConcurrency = 4

// ErrEmptyScreenshot is returned when the browser hands back no image data.
var ErrEmptyScreenshot = errors.New("empty screenshot")

// Capturer drives a Launcher through the capture sequence.
type Capturer struct {
	launcher    Launcher
	logger      *zap.Logger
	concurrency int
	pageTimeout time.Duration

	sleep      func(ctx context.Context, d time.Duration) error
	writeFile  func(path string, data []byte) error
	removeFile func(path string) error
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Capturer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency sets the page limit for CaptureAll.
func WithConcurrency(n int) Option {
	return func(c *Capturer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPageTimeout bounds each page from opening to the written file.
// Zero means no bound beyond the caller's context.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.pageTimeout = d
		}
	}
}

// New creates a Capturer backed by l.
func New(l Launcher, opts ...Option) *Capturer {
	c := &Capturer{
		launcher:    l,
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
		sleep:       sleepContext,
		writeFile:   writePNG,
		removeFile:  os.Remove,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture launches a browser, renders req and writes the PNG to req.Out.
// The browser is closed exactly once whatever happens. Nothing is retried.
func (c *Capturer) Capture(ctx context.Context, req Request) (res Result, err error) {
	req = req.withDefaults()
	start := time.Now()

	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			if err == nil {
				res, err = Result{}, fmt.Errorf("close browser: %w", cerr)
				return
			}
			c.logger.Warn("Browser close failed after capture error", zap.Error(cerr))
		}
	}()

	res, err = c.render(ctx, b, req)
	if err != nil {
		return Result{}, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// CaptureAll renders every request on one shared browser, at most
// the configured number of pages at a time. The first failure cancels
// the remaining pages and is returned, and the files already written by
// the batch are removed.
func (c *Capturer) CaptureAll(ctx context.Context, reqs []Request) (results []Result, err error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	normalized := make([]Request, len(reqs))
	seen := make(map[string]string, len(reqs))
	for i, req := range reqs {
		req = req.withDefaults()
		key := filepath.Clean(req.Out)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("output %s used by both %s and %s", req.Out, prev, req.URL)
		}
		seen[key] = req.URL
		normalized[i] = req
	}

	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			if err == nil {
				c.discard(results)
				results, err = nil, fmt.Errorf("close browser: %w", cerr)
				return
			}
			c.logger.Warn("Browser close failed after batch error", zap.Error(cerr))
		}
	}()

	results = make([]Result, len(normalized))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, req := range normalized {
		g.Go(func() error {
			start := time.Now()
			res, err := c.render(gctx, b, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.URL, err)
			}
			res.Elapsed = time.Since(start)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.discard(results)
		return nil, err
	}
	return results, nil
}

// discard removes the outputs of the pages that finished before a batch failed.
func (c *Capturer) discard(results []Result) {
	for _, res := range results {
		if res.Out == "" {
			continue
		}
		if err := c.removeFile(res.Out); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove partial batch output", zap.String("out", res.Out), zap.Error(err))
			continue
		}
		c.logger.Debug("Removed partial batch output", zap.String("out", res.Out))
	}
}

// render runs the page part of the sequence on an already running browser.
func (c *Capturer) render(ctx context.Context, b Browser, req Request) (Result, error) {
	if c.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pageTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := c.logger.With(zap.String("run_id", runID), zap.String("url", req.URL))

	log.Debug("Opening page",
		zap.Int("width", req.Viewport.Width),
		zap.Int("height", req.Viewport.Height))
	page, err := b.NewPage(ctx, req.Viewport)
	if err != nil {
		return Result{}, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("Page close failed", zap.Error(err))
		}
	}()

	if err := page.Navigate(ctx, req.URL); err != nil {
		return Result{}, fmt.Errorf("navigate %s: %w", req.URL, err)
	}
	log.Debug("Network idle, settling", zap.Duration("settle", req.Settle))

	if err := c.sleep(ctx, req.Settle); err != nil {
		return Result{}, fmt.Errorf("settle: %w", err)
	}

	data, err := page.Screenshot(ctx, req.FullPage)
	if err != nil {
		return Result{}, fmt.Errorf("screenshot: %w", err)
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("screenshot: %w", ErrEmptyScreenshot)
	}

	if err := c.writeFile(req.Out, data); err != nil {
		return Result{}, fmt.Errorf("write screenshot %s: %w", req.Out, err)
	}
	log.Info("Screenshot written", zap.String("out", req.Out), zap.Int("bytes", len(data)))

	return Result{
		RunID: runID,
		URL:   req.URL,
		Out:   req.Out,
		Size:  len(data),
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// writePNG creates parent directories and overwrites path.
func writePNG(path string, data []byte) error {
	return utils.OutputFile(path, data)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pageshot/internal/capture"
	"pageshot/internal/logging"
	"pageshot/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	captureURL      string
	captureOut      string
	captureFullPage bool
	watchDir        string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture one page to a PNG file",
	Long: `Launches headless Chromium with a 1200x900 viewport, loads the page,
waits for the network to go idle plus a short settle delay, and writes
the screenshot. Any failure exits non-zero; nothing is retried.

Precedence: flags > SCREENSHOT_URL / SCREENSHOT_OUT > config file > defaults.

With --watch DIR the page is captured again after every burst of file
changes under DIR until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&captureURL, "url", "u", "", "Page to capture (overrides SCREENSHOT_URL)")
	cmd.Flags().StringVarP(&captureOut, "out", "o", "", "Output PNG path (overrides SCREENSHOT_OUT)")
	cmd.Flags().BoolVar(&captureFullPage, "full-page", false, "Capture the whole scrollable page")
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Recapture when files under this directory change")
}

// captureRequest merges command line flags over the loaded config.
func captureRequest() capture.Request {
	req := cfg.CaptureRequest()
	if captureURL != "" {
		req.URL = captureURL
	}
	if captureOut != "" {
		req.Out = captureOut
	}
	if captureFullPage {
		req.FullPage = true
	}
	return req
}

// runCapture captures the configured page once, then optionally keeps watching.
func runCapture(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := captureRequest()
	capturer := newCapturer()

	shoot := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := capturer.Capture(ctx, req)
		if err != nil {
			return err
		}
		logger.Get(logging.CategoryBrowser).Debug("Capture finished",
			zap.String("run_id", res.RunID),
			zap.Duration("elapsed", res.Elapsed))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved screenshot to %s\n", res.Out)
		return nil
	}

	if err := shoot(ctx); err != nil {
		return err
	}
	if watchDir == "" {
		return nil
	}

	w, err := watch.New(watchDir, shoot,
		watch.WithDebounce(cfg.GetDebounce()),
		watch.WithSkipDirs(cfg.Watch.Ignore...),
		watch.WithIgnorePaths(req.Out),
		watch.WithLogger(logger.Get(logging.CategoryWatch)),
	)
	if err != nil {
		return fmt.Errorf("watch %s: %w", watchDir, err)
	}
	defer w.Close()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

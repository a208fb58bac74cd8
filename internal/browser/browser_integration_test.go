//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"pageshot/internal/browser"
	"pageshot/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLauncher_Capture_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `<html><body style="background:#3a7"><h1>Hello World</h1></body></html>`)
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000

	out := filepath.Join(t.TempDir(), "shot.png")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := capture.New(browser.NewLauncher(cfg, nil)).Capture(ctx, capture.Request{URL: ts.URL, Out: out})
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, int(info.Size()), res.Size)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestLauncher_NavigationFailure_Integration(t *testing.T) {
	cfg := browser.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := filepath.Join(t.TempDir(), "shot.png")
	_, err := capture.New(browser.NewLauncher(cfg, nil)).Capture(ctx, capture.Request{
		URL: "http://does-not-exist.invalid/",
		Out: out,
	})
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestPage_NavigateWaitsForImagesAndFonts_Integration(t *testing.T) {
	const delay = 2 * time.Second
	var pngServed, fontServed atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `<html><head><style>
@font-face { font-family: Slow; src: url(/slow.woff2) format("woff2"); }
body { font-family: Slow, sans-serif; }
</style></head><body><h1>Hello World</h1><img src="/slow.png"></body></html>`)
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		pngServed.Store(true)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	})
	mux.HandleFunc("/slow.woff2", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		fontServed.Store(true)
		w.Header().Set("Content-Type", "font/woff2")
		_, _ = w.Write([]byte("wOF2"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.NavigationTimeoutMs = 15000

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := browser.NewLauncher(cfg, nil).Launch(ctx)
	require.NoError(t, err)
	defer b.Close()

	page, err := b.NewPage(ctx, capture.DefaultViewport())
	require.NoError(t, err)
	defer page.Close()

	start := time.Now()
	require.NoError(t, page.Navigate(ctx, ts.URL))

	assert.True(t, pngServed.Load(), "navigate returned before the image was served")
	assert.True(t, fontServed.Load(), "navigate returned before the font was served")
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

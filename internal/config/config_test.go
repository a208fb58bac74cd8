package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pageshot/internal/capture"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv makes the tests independent of the caller's environment.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(capture.EnvURL, "")
	t.Setenv(capture.EnvOut, "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, capture.DefaultURL, cfg.Capture.URL)
	assert.Equal(t, "static/screenshot.png", cfg.Capture.Out)
	assert.Equal(t, capture.Viewport{Width: 1200, Height: 900}, cfg.Capture.Viewport)
	assert.Equal(t, 500*time.Millisecond, cfg.GetSettle())
	assert.True(t, cfg.Browser.Headless)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should give defaults (-want +got):\n%s", diff)
	}
}

func TestCaptureRequest_EnvOverDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(capture.EnvURL, "https://example.com")
	t.Setenv(capture.EnvOut, "/tmp/shot.png")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	want := capture.RequestFromEnv()
	if diff := cmp.Diff(want, cfg.CaptureRequest()); diff != "" {
		t.Errorf("default config should match RequestFromEnv (-want +got):\n%s", diff)
	}
	assert.Equal(t, "https://example.com", want.URL)
	assert.Equal(t, "/tmp/shot.png", want.Out)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pageshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
capture:
  url: https://file.example
  out: shots/home.png
  settle: 1s
  full_page: true
browser:
  flags: ["--no-sandbox"]
batch:
  concurrency: 2
  targets:
    - url: https://file.example/a
      out: shots/a.png
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	req := cfg.CaptureRequest()
	assert.Equal(t, "https://file.example", req.URL)
	assert.Equal(t, time.Second, req.Settle)
	assert.True(t, req.FullPage)
	assert.Equal(t, capture.Viewport{Width: 1200, Height: 900}, req.Viewport, "unset keys keep defaults")
	assert.Equal(t, []string{"--no-sandbox"}, cfg.Browser.Flags)

	t.Setenv(capture.EnvURL, "https://env.example")
	req = cfg.CaptureRequest()
	assert.Equal(t, "https://env.example", req.URL, "env beats file")
	assert.Equal(t, "shots/home.png", req.Out)

	reqs := cfg.BatchRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://file.example/a", reqs[0].URL, "batch targets ignore SCREENSHOT_URL")
	assert.Equal(t, "shots/a.png", reqs[0].Out)
	assert.True(t, reqs[0].FullPage)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"yaml":     "capture: [",
		"duration": "capture:\n  settle: soon\n",
		"target":   "batch:\n  targets:\n    - url: https://example.com\n",
		"viewport": "capture:\n  viewport:\n    width: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pageshot.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "pageshot.yaml")

	cfg := DefaultConfig()
	cfg.Capture.URL = "https://saved.example"
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# pageshot configuration.")

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_SaveExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644))

	err := DefaultConfig().Save(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "logging:\n  level: warn\n", string(data), "refused save leaves the file alone")

	require.NoError(t, DefaultConfig().Save(path, true))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, capture.DefaultSettle, cfg.GetSettle())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetIdleWindow())
	assert.Equal(t, 300*time.Millisecond, cfg.GetDebounce())
}

func TestBrowserOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.NavigationTimeout = "12s"
	cfg.Browser.IdleWindow = "750ms"
	cfg.Browser.Bin = "/opt/chrome"

	opts := cfg.BrowserOptions()
	assert.Equal(t, 12000, opts.NavigationTimeoutMs)
	assert.Equal(t, 750, opts.IdleWindowMs)
	assert.Equal(t, "/opt/chrome", opts.Bin)
	assert.True(t, opts.Headless)
}

package capture

import "context"

// Launcher acquires a browser. Every Browser it returns must be closed by the caller.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser instance.
type Browser interface {
	NewPage(ctx context.Context, vp Viewport) (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	// Navigate loads url and returns once the network has gone idle.
	Navigate(ctx context.Context, url string) error
	// Screenshot returns PNG bytes of the viewport, or of the whole page when fullPage is set.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

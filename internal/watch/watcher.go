// Package watch re-runs a callback whenever files under a directory tree
// change, once per burst of events.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period that ends a burst of events.
const DefaultDebounce = 300 * time.Millisecond

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches a directory tree and calls onChange after each settled burst.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	root     string
	skipDirs map[string]struct{}
	ignore   []string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *zap.Logger

	dirty     bool
	lastEvent time.Time
	stats     Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSkipDirs skips directories with these base names while walking the tree.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.skipDirs[n] = struct{}{}
		}
	}
}

// WithIgnorePaths drops events for these paths. Events on their parent
// directories are dropped too, so creating an output file's directory
// does not count as a change.
func WithIgnorePaths(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// New creates a Watcher and registers every directory under root.
// The watches are active when New returns.
func New(root string, onChange func(ctx context.Context) error, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		root:     abs,
		skipDirs: make(map[string]struct{}),
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and all its subdirectories except skipped ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := w.skipDirs[d.Name()]; skip && path != dir {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("Watching directory", zap.String("path", path))
		return nil
	})
}

// Run processes events until ctx is done or the watcher is closed.
// Callback errors are logged and counted; they do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("Watching for changes", zap.String("root", w.root), zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if w.settled() {
				w.trigger(ctx)
			}
		}
	}
}

// handleEvent records one filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	// New directories are registered even when the event itself is ignored.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, skip := w.skipDirs[filepath.Base(event.Name)]; !skip {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
				}
			}
		}
	}
	if w.ignored(event.Name) {
		return
	}

	w.logger.Debug("Change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.dirty = true
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = w.lastEvent
	w.mu.Unlock()
}

// settled reports whether a burst has gone quiet, and clears it if so.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty || time.Since(w.lastEvent) < w.debounce {
		return false
	}
	w.dirty = false
	w.stats.Triggers++
	return true
}

func (w *Watcher) trigger(ctx context.Context) {
	if w.onChange == nil {
		return
	}
	if err := w.onChange(ctx); err != nil {
		w.logger.Error("Change handler failed", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	}
}

func (w *Watcher) ignored(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, p := range w.ignore {
		if abs == p || strings.HasPrefix(p, abs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close releases the underlying fsnotify handle. Run returns afterwards.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Package logging builds the process logger and hands out per-category
// children. Logs always go to stderr (plus an optional file) so that stdout
// stays free for command output.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategoryBrowser Category = "browser" // Browser launch, navigation, screenshots
	CategoryBuild   Category = "build"   // Build adapter selection
	CategoryWatch   Category = "watch"   // Filesystem watch and recapture
)

// Options configures the root logger.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // extra output path, empty for stderr only
	Verbose    bool            // forces debug level
	Categories map[string]bool // per-category toggles, missing means enabled
}

// Logger is the root logger plus category toggles.
type Logger struct {
	base       *zap.Logger
	categories map[string]bool
}

// New builds a zap production logger from opts.
func New(opts Options) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	switch strings.ToLower(opts.Format) {
	case "", "json":
		cfg.Encoding = "json"
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if level == zapcore.DebugLevel {
		cfg.Sampling = nil
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{base: base, categories: opts.Categories}, nil
}

// Wrap turns an existing zap logger into a Logger with every category enabled.
func Wrap(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(s))
}

// Base returns the uncategorized logger.
func (l *Logger) Base() *zap.Logger {
	return l.base
}

// IsCategoryEnabled returns whether a specific category is enabled
func (l *Logger) IsCategoryEnabled(cat Category) bool {
	if l.categories == nil {
		return true
	}
	enabled, exists := l.categories[string(cat)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns the named child logger for cat, or a no-op logger when the
// category is switched off.
func (l *Logger) Get(cat Category) *zap.Logger {
	if !l.IsCategoryEnabled(cat) {
		return zap.NewNop()
	}
	return l.base.Named(string(cat))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

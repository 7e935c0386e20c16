// Package debug holds the process-wide structured logger. Library packages log through
// the package functions so the CLI and tests can redirect or silence them in one place.
package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Format selects the handler records are written with.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures the logger.
type Options struct {
	// Verbose lowers the level from warn to debug.
	Verbose bool
	Format  Format
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

var (
	level = new(slog.LevelVar)

	mu     sync.RWMutex
	logger *slog.Logger
)

func init() {
	Init(false)
}

// Init configures a logger on os.Stderr, in the format named by AQL_LOG_FORMAT.
func Init(verbose bool) {
	Configure(Options{Verbose: verbose, Format: Format(os.Getenv("AQL_LOG_FORMAT"))})
}

// Configure replaces the logger.
func Configure(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	SetVerbose(opts.Verbose)

	ho := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}

	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

// SetVerbose switches between debug and warn without replacing the handler.
func SetVerbose(verbose bool) {
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}
}

// Enabled reports whether debug records are written.
func Enabled() bool {
	return level.Level() <= slog.LevelDebug
}

func Debug(msg string, args ...any) { current().Debug(msg, args...) }

func Info(msg string, args ...any) { current().Info(msg, args...) }

func Warn(msg string, args ...any) { current().Warn(msg, args...) }

func Error(msg string, args ...any) { current().Error(msg, args...) }

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

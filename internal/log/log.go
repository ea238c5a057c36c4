// Package log builds the application's slog loggers.
//
// Loggers are injected, not global: each component receives one through its
// constructor and narrows it with With("component", ...). Tests use NewNop,
// or NewWithWriter with a buffer to assert on output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so constructors can name the dependency
// without inventing a custom interface.
type Logger = *slog.Logger

// Config selects handler format and verbosity.
type Config struct {
	Level     slog.Level // minimum level, zero value is Info
	JSON      bool       // JSON handler instead of text
	AddSource bool       // annotate records with file:line
}

// New returns a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test use only; wiring it
// into production code silently loses the component's logs.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

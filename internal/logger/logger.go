// Package logger provides structured logging setup for TestForge.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/TestForge/internal/config"
)

// Closer flushes and stops an asynchronous logging pipeline.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// levelVar is the process-wide minimum level shared by every logger New
// returns, so SetLevel takes effect on config reload.
var levelVar slog.LevelVar

// New creates a *slog.Logger from the given Logging config. Output is
// JSON to stdout with a "service" attribute on every record. When
// async mode is enabled, records pass through a buffered channel and
// the returned Closer must be called to flush them on shutdown; in
// synchronous mode the Closer is a no-op.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	levelVar.Set(parseLevel(cfg.Level))

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &levelVar,
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		async := NewAsyncHandler(handler, cfg.AsyncBuffer, cfg.AsyncWorkers)
		handler = async
		closer = async
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// SetLevel adjusts the minimum level at runtime.
func SetLevel(s string) {
	levelVar.Set(parseLevel(s))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

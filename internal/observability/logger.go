package observability

import (
	"log/slog"
	"os"
)

// basic global logger, JSON to stderr so interactive stdout stays clean.
var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func Logger() *slog.Logger {
	return logger
}

// WithComponent returns a logger tagged with the emitting component.
func WithComponent(name string) *slog.Logger {
	return logger.With("component", name)
}

// Package log configures the process-wide structured logger.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Every line carries the service attribute so the api and escalator
// processes stay attributable in aggregated logs.
const serviceName = "careflow"

// Setup installs the careflow logger as the process default.
func Setup(logLevel string) {
	slog.SetDefault(New(os.Stderr, logLevel))
}

// New builds a logger writing text lines to w at the given level.
func New(w io.Writer, logLevel string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})

	return slog.New(handler).With("service", serviceName)
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule derives a logger for one subsystem from the process default.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// Package telemetry sets up logging and tracing for the goalagent binary.
package telemetry

import (
	"io"
	"log/slog"
	"strings"

	"github.com/go-logr/logr"
)

// NewLogger returns a logr.Logger writing text or JSON records to output.
// At "debug" level, V(1) through V(4) messages are emitted too.
func NewLogger(output io.Writer, level, format string) logr.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return logr.FromSlogHandler(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

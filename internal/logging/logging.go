package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Supported output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel converts debug|info|warn|error (any case) into a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// New creates a structured logger writing to w. Records are also captured in
// buf when it is non-nil so the log viewer can serve them.
func New(level, format string, w io.Writer, buf *Buffer) (*slog.Logger, error) {
	logLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	if buf != nil {
		handler = buf.Handler(handler)
	}

	return slog.New(handler), nil
}

// Discard returns a logger that drops everything, for tests and defaults
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Package logging builds the slog loggers used by the server and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures New.
type Options struct {
	Level  string    // debug, info, warn or error; anything else is info
	Format string    // "json" or text
	Output io.Writer // defaults to stderr
}

// ParseLevel maps a level name onto a slog level, case-insensitively.
// Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger for opts without touching the default logger.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler)
}

// Setup creates a logger writing to stderr in the format named by
// FAMILYOS_LOG_FORMAT, sets it as the default, and returns it.
func Setup(level string) *slog.Logger {
	logger := New(Options{Level: level, Format: os.Getenv("FAMILYOS_LOG_FORMAT")})
	slog.SetDefault(logger)
	return logger
}

// Package logging builds the process-wide structured logger. Components
// derive their own loggers from it via With("component", name).
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a text logger on stdout filtering below the named level.
// Unrecognized or empty levels select debug, so a misconfigured deployment
// logs too much rather than too little.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

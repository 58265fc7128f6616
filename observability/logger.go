// Package observability sets up process-wide logging and tracing for the
// outreach server.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps debug|info|warn|error (case-insensitive) to a slog.Level.
// The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("observability: unknown log level %q", s)
}

// NewLogger builds a JSON logger tagged with the service name. An unknown
// level falls back to info and is reported once through the new logger.
func NewLogger(w io.Writer, service, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})).
		With("service", service)
	if err != nil {
		logger.Warn("observability: invalid log level, using info", "error", err)
	}
	return logger
}

// Package logger builds the application's slog logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-drill/internal/platform/config"
)

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is
// info and ok is false.
func ParseLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON or text logger writing to w.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if !ok && cfg.Level != "" {
		logger.Warn("invalid log level configured, using info", "configured_level", cfg.Level)
	}
	return logger
}

// Setup creates the logger and installs it as the slog default.
func Setup(cfg config.LogConfig, w io.Writer) *slog.Logger {
	logger := New(cfg, w)
	slog.SetDefault(logger)
	return logger
}

package logger

import (
	"log/slog"
	"os"
	"strings"
)

var (
	level  = new(slog.LevelVar)
	logger *slog.Logger
)

func init() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of emitted records.
// Accepted values are "debug", "info", "warn" and "error". Unknown values fall back to info.
func SetLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Info logs the provided message at [InfoLevel].
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Debug logs the provided message at [DebugLevel].
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Warn logs the provided message at [WarnLevel].
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs the provided message at [ErrorLevel].
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

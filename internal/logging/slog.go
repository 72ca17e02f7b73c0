// Package logging holds the operational logger for the dispatcher and the
// remote handler.
package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	if v := os.Getenv("QUASAR_LOG_LEVEL"); v != "" {
		SetLevelFromString(v)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	opLogger.Store(slog.New(handler))
}

// Op returns the operational logger. Dispatch-scoped loggers are derived from
// it with With("invocation", id).
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLogger replaces the operational logger. The Lambda entrypoint uses this
// to switch to JSON output for CloudWatch.
func SetLogger(l *slog.Logger) {
	opLogger.Store(l)
}

// Level returns the level var shared by handlers installed here, so a
// replacement handler keeps honoring SetLevelFromString.
func Level() *slog.LevelVar {
	return logLevel
}

// SetLevelFromString sets the log level from a string. Valid values:
// "debug", "info", "warn", "error". Unknown values are ignored.
func SetLevelFromString(level string) {
	switch level {
	case "debug", "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "info", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "warn", "WARN", "warning", "WARNING":
		logLevel.Set(slog.LevelWarn)
	case "error", "ERROR":
		logLevel.Set(slog.LevelError)
	}
}

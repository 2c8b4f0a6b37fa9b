package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON on stdout so log
// shippers can index the key/value attrs the middleware and services emit.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
}

func levelFromEnv() slog.Level {
	switch os.Getenv("OPSDECK_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

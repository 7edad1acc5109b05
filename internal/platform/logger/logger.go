package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the level named by GIFTVAULT_LOG_LEVEL.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("GIFTVAULT_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

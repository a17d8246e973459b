package log

// Bootstrap for the process-wide slog logger. The runtime itself logs
// through log/slog; embedders call Setup once with their configuration.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Setup installs a JSON slog handler at the given level, writing to the
// given file or stderr, and makes it the default logger.
func Setup(level, file string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: false,
		Level:     levelFromString(level),
	}
	logger := slog.New(slog.NewJSONHandler(writer(file), opts))
	slog.SetDefault(logger)
	return logger
}

func writer(file string) *os.File {
	if file == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", file, err)
		return os.Stderr
	}
	out, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", file, err)
		return os.Stderr
	}
	return out
}

func levelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a *slog.Logger that writes JSON to stderr, and to logFile as well
// when one is given. The logger becomes the slog default so package-level slog
// calls share it. Callers must defer the returned cleanup, which closes the
// log file if one was opened.
func New(level, logFile string) (*slog.Logger, func(), error) {
	var writers []io.Writer
	writers = append(writers, os.Stderr)
	cleanup := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package logging configures the process-wide slog logger.
//
// Init installs a text handler as the slog default, which also routes the
// log.Printf calls used across the service through the same handler.
//
// LOG_LEVEL values: "debug", "info", "warn", "error" (default "info").
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

func Init(levelName string) *slog.Logger {
	return InitWriter(os.Stdout, levelName)
}

func InitWriter(w io.Writer, levelName string) *slog.Logger {
	level.Set(ParseLevel(levelName))
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func Level() slog.Level {
	return level.Level()
}

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

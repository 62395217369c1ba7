// Package logging builds the root slog logger of every binary.
package logging

import (
	"log/slog"
	"strings"

	"github.com/mama165/sdk-go/logs"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns the console logger for level. When file is set, records are
// also written as JSON to a rotated file.
func New(level, file string) *slog.Logger {
	log := logs.GetLoggerFromString(level)
	if file == "" {
		return log
	}
	return slog.New(slogmulti.Fanout(
		log.Handler(),
		slog.NewJSONHandler(rotated(file), &slog.HandlerOptions{Level: ParseLevel(level)}),
	))
}

// NewFileOnly keeps the terminal free for interactive output.
func NewFileOnly(level, file string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(rotated(file), &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel falls back to info for unknown names.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func rotated(file string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 8,
		MaxAge:     7,
		Compress:   true,
	}
}

// Package logger standardizes slog setup across binaries.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. When debug is set the
// handler emits debug-level records as well.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

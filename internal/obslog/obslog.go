// Package obslog provides a minimal structured leveled logger for CLI
// diagnostic output, written to the provided io.Writer (stderr for a CLI):
// stdout is reserved for the canonical artifact a CLI emits, never for log
// lines. The cmd/* entrypoints in this module do not call it; they write
// their diagnostics to stderr directly.
package obslog

import (
	"io"
	"log/slog"
)

// New builds a slog.Logger writing leveled text records to w, filtered at
// level. level is one of "debug", "info", "warn", "error" (unrecognized
// values fall back to "info").
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch level {
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

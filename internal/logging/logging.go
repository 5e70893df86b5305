// Package logging builds the *slog.Logger threaded through the
// repository manager and CLI. It is grounded on the ambient
// "fmt.Fprintf(os.Stderr, ...) guarded by a debug bool" pattern used
// elsewhere in the wider codebase's merge routines — the same call sites
// here take a *slog.Logger instead of a bare bool, so any slog.Handler
// can be swapped in.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level string // "debug", "info", "warn", "error"; default "info"
	File  string // when non-empty, logs rotate through this file instead of stderr
}

// New builds a text-handler slog.Logger. When Options.File is set, writes
// go through a lumberjack.Logger so long-running `jsongit watch` sessions
// rotate their log file instead of growing unbounded.
func New(opts Options) *slog.Logger {
	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Package logging builds the slog loggers used by the CLI and servers.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options selects the handler.
type Options struct {
	// Verbose lowers the level to debug, which enables the module trace.
	Verbose bool
	// JSON switches from the text handler to the JSON handler.
	JSON bool
}

// New returns a logger writing to w. Text output drops the timestamp and
// level so the module trace reads as an indented tree.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: compact,
	}))
}

func compact(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.Attr{}
	case slog.LevelKey:
		if a.Value.Any().(slog.Level) == slog.LevelDebug {
			return slog.Attr{}
		}
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

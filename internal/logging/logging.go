// Package logging builds the *slog.Logger handle passed in at construction
// to the components that log (the sandbox Dispatcher, the session Manager,
// the Coalescer, the maintenance Scheduler) rather than reaching for a
// package-global. The Framebuffer and the ANSI/VT interpreter do not log.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Options configures the logger New builds.
type Options struct {
	Level   string // debug, info, warn, error
	LogFile string // optional, appended to in addition to stdout
	Plain   bool   // disable tint's colored console rendering (e.g. non-tty, log aggregation)
}

// New builds a *slog.Logger writing to stdout (colorized via tint unless
// Plain is set; New does not itself check whether stdout is a terminal)
// and, if LogFile is set, additionally appending plain text to that file.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	var stdoutHandler slog.Handler
	if opts.Plain {
		stdoutHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		stdoutHandler = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: "15:04:05"})
	}

	if opts.LogFile == "" {
		return slog.New(stdoutHandler), nil
	}

	f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(multiHandler{stdoutHandler, fileHandler}), nil
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

// multiHandler fans a record out to every handler it wraps, letting stdout
// keep its colorized rendering while a log file gets plain text.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m {
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

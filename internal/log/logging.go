// Package log provides helpers for creating a configured slog.Logger and a
// raw tap for wire frames.
//
// When a log file path is not provided, logs are written to stdout for
// non-error levels and to stderr for errors (so stderr can be used for
// error redirection while keeping normal logs on stdout).
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below Debug and also enables the raw frame tap.
const LevelTrace slog.Level = -8

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans out records to multiple handlers.
type MultiHandler struct{ hs []slog.Handler }

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.hs {
		_ = h.Handle(ctx, r)
	}
	return nil
}
func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}
func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// LevelFilter delegates to an underlying handler but filters which levels are
// passed to it using the provided predicate.
type LevelFilter struct {
	pass func(slog.Level) bool
	h    slog.Handler
}

func (f LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if !f.pass(level) {
		return false
	}
	return f.h.Enabled(ctx, level)
}

func (f LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.pass(r.Level) {
		return nil
	}
	return f.h.Handle(ctx, r)
}

func (f LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithAttrs(attrs)}
}
func (f LevelFilter) WithGroup(name string) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithGroup(name)}
}

// Config holds the logging flags shared by all commands.
type Config struct {
	Level   string `help:"Log level (trace, debug, info, warn, error)" default:"info" enum:"trace,debug,info,warn,warning,error" env:"DOFSTREAM_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"DOFSTREAM_LOG_FILE"`
	RawFile string `help:"Write every transmitted/received frame to this file" env:"DOFSTREAM_LOG_RAW_FILE"`
}

// Setup builds the logger and the raw frame tap described by cfg. The raw
// tap writes to RawFile when set, to stdout at trace level, and nowhere
// otherwise. The returned closers must be closed on exit.
func Setup(cfg Config) (*slog.Logger, RawLogger, []io.Closer, error) {
	logger, closers, err := SetupLogger(cfg.Level, cfg.File)
	if err != nil {
		return nil, nil, nil, err
	}

	switch {
	case cfg.RawFile != "":
		f, err := os.OpenFile(cfg.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cfg.RawFile, "error", err)
			return logger, NewRaw(nil), closers, nil
		}
		return logger, NewRaw(f), append(closers, f), nil
	case ParseLevel(cfg.Level) <= LevelTrace:
		return logger, NewRaw(os.Stdout), closers, nil
	default:
		return logger, NewRaw(nil), closers, nil
	}
}

// SetupLogger builds a slog.Logger with console and optional file handlers.
// Without a file, errors go to stderr and everything else to stdout.
func SetupLogger(logLevel, logFile string) (*slog.Logger, []io.Closer, error) {
	level := ParseLevel(logLevel)
	below := func(l slog.Level) bool { return l < slog.LevelError }
	atLeast := func(l slog.Level) bool { return l >= slog.LevelError }

	if logFile == "" {
		return slog.New(MultiHandler{hs: []slog.Handler{
			LevelFilter{pass: below, h: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})},
			LevelFilter{pass: atLeast, h: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})},
		}}), nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(MultiHandler{hs: []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}),
	}}), []io.Closer{f}, nil
}

package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Alia5/dofstream/sample"
)

// Sink consumes decoded states.
type Sink interface {
	Handle(ctx context.Context, st sample.State) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, st sample.State) error

func (f SinkFunc) Handle(ctx context.Context, st sample.State) error { return f(ctx, st) }

// MultiSink delivers every state to each sink in order and joins the errors.
type MultiSink []Sink

func (m MultiSink) Handle(ctx context.Context, st sample.State) error {
	var errs []error
	for _, s := range m {
		if err := s.Handle(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink prints every state.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (l LogSink) Handle(ctx context.Context, st sample.State) error {
	l.Logger.Log(ctx, l.Level, "Received",
		"x", st.X, "y", st.Y, "z", st.Z,
		"roll", st.Roll, "pitch", st.Pitch, "yaw", st.Yaw,
		"buttons", st.Buttons)
	return nil
}

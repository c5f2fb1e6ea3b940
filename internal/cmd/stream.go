package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/internal/session"
	"github.com/Alia5/dofstream/streamclient"
)

// Stream calibrates a device and streams its conditioned samples.
type Stream struct {
	Addr         string         `help:"Ingester address" default:"127.0.0.1:5005" env:"DOFSTREAM_ADDR"`
	DialTimeout  time.Duration  `help:"Connect timeout" default:"3s" env:"DOFSTREAM_DIAL_TIMEOUT"`
	WriteTimeout time.Duration  `help:"Timeout for writing a single frame" default:"5s" env:"DOFSTREAM_WRITE_TIMEOUT"`
	Device       DeviceConfig   `embed:"" prefix:"device."`
	Pipeline     session.Config `embed:"" prefix:"pipeline."`
}

// Validate is called by Kong after parsing.
func (s *Stream) Validate() error {
	return s.Pipeline.Validate()
}

// Run is called by Kong when the stream command is executed.
func (s *Stream) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartStream(ctx, logger, rawLogger)
}

// StartStream runs a streaming session until ctx is cancelled or the
// connection fails.
func (s *Stream) StartStream(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if err := s.Pipeline.Validate(); err != nil {
		return err
	}
	dev, err := s.Device.create()
	if err != nil {
		logger.Error("Failed to open device", "type", s.Device.Type, "error", err)
		return err
	}

	cfg := &streamclient.Config{DialTimeout: s.DialTimeout, WriteTimeout: s.WriteTimeout}
	dial := func(ctx context.Context) (session.SendCloser, error) {
		st, err := streamclient.Dial(ctx, s.Addr, cfg, rawLogger)
		if err != nil {
			logger.Error("Unable to connect to ingester. Is it running?", "addr", s.Addr, "error", err)
			return nil, err
		}
		logger.Info("Connected to ingester", "addr", st.RemoteAddr().String())
		return st, nil
	}

	logger.Info("Starting stream", "device", s.Device.Type, "addr", s.Addr, "threshold", s.Pipeline.Threshold)
	return session.Serve(ctx, s.Pipeline, dev, dial, logger)
}

func outOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

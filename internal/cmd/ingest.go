package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/internal/server/ingest"
)

// Ingest receives a stream.
type Ingest struct {
	ingest.ServerConfig `embed:""`
}

// Run is called by Kong when the ingest command is executed.
func (i *Ingest) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return i.StartIngest(ctx, logger, rawLogger)
}

// StartIngest serves until ctx is cancelled or, with Once, until the first
// connection ends.
func (i *Ingest) StartIngest(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	var sinks ingest.MultiSink
	if !i.Quiet {
		sinks = append(sinks, ingest.LogSink{Logger: logger, Level: slog.LevelInfo})
	}
	if i.MQTT.Broker != "" {
		m, err := ingest.DialMQTT(i.MQTT, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		sinks = append(sinks, m)
	}

	srv := ingest.New(i.ServerConfig, sinks, logger, rawLogger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down ingester")
		_ = srv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

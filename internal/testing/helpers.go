package testing

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/internal/server/ingest"
	"github.com/Alia5/dofstream/sample"
)

// Recorder is a sender that keeps every state it is given.
type Recorder struct {
	mu      sync.Mutex
	states  []sample.State
	sendErr error
	closes  int
}

// FailWith makes every following Send return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendErr = err
}

func (r *Recorder) Send(st sample.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.states = append(r.states, st)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

// States returns a copy of the recorded states.
func (r *Recorder) States() []sample.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sample.State, len(r.states))
	copy(out, r.states)
	return out
}

// Closes returns how often Close was called.
func (r *Recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Collector is an ingest.Sink forwarding states to a channel.
type Collector struct {
	C chan sample.State
}

// NewCollector creates a collector buffering up to size states.
func NewCollector(size int) *Collector {
	return &Collector{C: make(chan sample.State, size)}
}

func (c *Collector) Handle(ctx context.Context, st sample.State) error {
	select {
	case c.C <- st:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait returns n states or fails the test after timeout.
func (c *Collector) Wait(t *testing.T, n int, timeout time.Duration) []sample.State {
	t.Helper()
	out := make([]sample.State, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case st := <-c.C:
			out = append(out, st)
		case <-deadline:
			t.Fatalf("received %d of %d frames within %s", len(out), n, timeout)
		}
	}
	return out
}

// StartIngest runs an ingest server on a free loopback port. The server is
// closed when the test ends.
func StartIngest(t *testing.T, cfg ingest.ServerConfig, sink ingest.Sink) (*ingest.Server, string) {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv := ingest.New(cfg, sink, slog.Default(), log.NewRaw(nil))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("ingest server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingest server did not become ready")
	}

	t.Cleanup(func() {
		_ = srv.Close()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
		}
	})
	return srv, srv.Addr().String()
}

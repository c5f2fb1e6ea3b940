// Package streamclient sends conditioned states to an ingester over a single
// TCP connection using newline-delimited JSON frames.
package streamclient

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/sample"
)

var (
	// ErrConnectionRefused is returned when the ingester cannot be reached.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrConnectionLost is returned when an established connection fails.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned when sending on a closed stream.
	ErrClosed = errors.New("stream closed")
)

// Config controls dial and write behavior.
type Config struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the timeouts used when none are given.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Stream is an open connection to an ingester. It is safe for concurrent
// use, though a session normally sends from a single goroutine.
type Stream struct {
	conn net.Conn
	cfg  Config
	raw  log.RawLogger

	mu     sync.Mutex
	closed bool
	sent   uint64
}

// Dial connects to addr. A nil cfg uses DefaultConfig; a nil raw disables
// the frame tap.
func Dial(ctx context.Context, addr string, cfg *Config, raw log.RawLogger) (*Stream, error) {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}

	d := &net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, ctx.Err())
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectionRefused, addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}

	return &Stream{conn: conn, cfg: c, raw: raw}, nil
}

// NewStream wraps an established connection, e.g. one end of net.Pipe.
func NewStream(conn net.Conn, cfg *Config, raw log.RawLogger) *Stream {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Stream{conn: conn, cfg: c, raw: raw}
}

// Send writes one state as a frame.
func (s *Stream) Send(st sample.State) error {
	return s.WriteBinary(&st)
}

// WriteBinary marshals v and writes the result as-is. Connection failures
// are reported as ErrConnectionLost; encoding failures are returned unwrapped.
func (s *Stream) WriteBinary(v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := s.conn.Write(data); err != nil {
		return classifyWriteError(err)
	}
	s.raw.Log(true, data)
	s.sent++
	return nil
}

// Sent returns the number of frames written successfully.
func (s *Stream) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// RemoteAddr returns the ingester address.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close closes the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func classifyWriteError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: write timed out: %v", ErrConnectionLost, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

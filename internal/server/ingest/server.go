// Package ingest implements the receiving end of a stream: a TCP server that
// serves one connection at a time, splits it into frames and hands every
// decoded state to a Sink.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/sample"
)

// Stats counts what the server has seen since it started.
type Stats struct {
	Connections  uint64
	Frames       uint64
	DecodeErrors uint64
	AcceptErrors uint64
}

// Server accepts stream connections sequentially.
type Server struct {
	cfg       ServerConfig
	sink      Sink
	logger    *slog.Logger
	rawLogger log.RawLogger

	mu     sync.Mutex
	ln     net.Listener
	active net.Conn
	closed bool
	ready  chan struct{}

	connections  atomic.Uint64
	frames       atomic.Uint64
	decodeErrors atomic.Uint64
	acceptErrors atomic.Uint64
}

// New creates a server delivering frames to sink.
func New(cfg ServerConfig, sink Sink, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	if rawLogger == nil {
		rawLogger = log.NewRaw(nil)
	}
	return &Server{
		cfg:       cfg,
		sink:      sink,
		logger:    logger,
		rawLogger: rawLogger,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:  s.connections.Load(),
		Frames:       s.frames.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		AcceptErrors: s.acceptErrors.Load(),
	}
}

// accept failures back off exponentially between these bounds
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ListenAndServe binds the listener and serves connections one after the
// other until Close is called (or, with Once, until the first connection
// ends). A second client waits in the accept backlog while one is served.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. The server takes ownership of ln.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	close(s.ready)
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("Ingester listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(strings.ToLower(err.Error()), "use of closed network connection") {
				s.logger.Info("Ingester stopped")
				return nil
			}
			s.acceptErrors.Add(1)
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Error("Accept error", "error", err, "retryIn", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.serveConn(conn)

		if s.cfg.Once {
			_ = s.Close()
			s.logger.Info("Ingester stopped after single connection")
			return nil
		}
	}
}

// Close stops the listener and drops the active connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.active != nil {
		_ = s.active.Close()
	}
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) setActive(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != nil && s.closed {
		return false
	}
	s.active = c
	return true
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	if !s.setActive(conn) {
		return
	}
	defer s.setActive(nil)
	s.connections.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connLogger := s.logger.With("remote", conn.RemoteAddr().String())
	connLogger.Info("Connection from client")

	dec := sample.NewDecoder(&tapReader{r: conn, raw: s.rawLogger})
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		st, err := dec.Decode()
		if err != nil {
			var fe *sample.FrameError
			if errors.As(err, &fe) {
				s.decodeErrors.Add(1)
				connLogger.Warn("Dropping malformed frame", "error", err)
				continue
			}
			if isExpectedDisconnect(err) {
				connLogger.Info("Client disconnected")
				return
			}
			connLogger.Error("Read failed", "error", err)
			return
		}

		s.frames.Add(1)
		if err := s.sink.Handle(ctx, st); err != nil {
			connLogger.Warn("Sink failed", "error", err)
		}
	}
}

// tapReader feeds every chunk read from the connection to the raw logger.
type tapReader struct {
	r   io.Reader
	raw log.RawLogger
}

func (t *tapReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.raw.Log(false, p[:n])
	}
	return n, err
}

func isExpectedDisconnect(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset") ||
		strings.Contains(e, "broken pipe") ||
		strings.Contains(e, "forcibly closed") ||
		strings.Contains(e, "use of closed network connection")
}

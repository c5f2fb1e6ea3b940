// Package session runs the polling loop that reads a device, conditions each
// sample and transmits it while the controller is active.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fatih/stopwatch"

	"github.com/Alia5/dofstream/condition"
	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"
	"github.com/Alia5/dofstream/streamclient"
)

// read failures are logged on the first occurrence and then once per this
// many consecutive failures
const readErrorLogEvery = 250

// Sender transmits conditioned states. *streamclient.Stream satisfies it.
type Sender interface {
	Send(st sample.State) error
}

// SendCloser is a Sender owning a connection.
type SendCloser interface {
	Sender
	Close() error
}

// Dialer opens the connection of a session.
type Dialer func(ctx context.Context) (SendCloser, error)

// Stats counts the work done by a session.
type Stats struct {
	Ticks      uint64
	ReadErrors uint64
	Sent       uint64
	Suppressed uint64
	Dropped    uint64
}

// Session owns the calibration offset, the activity machine and the polling
// loop of one device/connection pair.
type Session struct {
	cfg    Config
	dev    condition.Reader
	tx     Sender
	logger *slog.Logger

	cond    *condition.Conditioner
	machine *condition.Machine
	// time spent in the current mode
	inMode *stopwatch.Stopwatch

	readFailures int

	ticks      atomic.Uint64
	readErrors atomic.Uint64
	sent       atomic.Uint64
	suppressed atomic.Uint64
	dropped    atomic.Uint64
}

// New creates a session. It is not calibrated until Calibrate succeeds (or a
// fixed offset is configured).
func New(cfg Config, dev condition.Reader, tx Sender, logger *slog.Logger) *Session {
	return &Session{
		cfg:     cfg,
		dev:     dev,
		tx:      tx,
		logger:  logger,
		machine: condition.NewMachine(cfg.SleepAfter),
		inMode:  stopwatch.Start(0),
	}
}

// Serve acquires the device and the connection, runs the session and
// releases both on every exit path. Cancelling ctx is a clean shutdown and
// yields a nil error.
func Serve(ctx context.Context, cfg Config, dev device.Device, dial Dialer, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := dev.Open(); err != nil {
		if !errors.Is(err, device.ErrOpen) {
			err = fmt.Errorf("%w: %v", device.ErrOpen, err)
		}
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("failed to close device", "error", err)
		}
	}()

	tx, err := dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Exiting...")
			return nil
		}
		return err
	}
	defer func() {
		if err := tx.Close(); err != nil {
			logger.Warn("failed to close connection", "error", err)
		}
	}()

	s := New(cfg, dev, tx, logger)
	err = s.Run(ctx)
	st := s.Stats()
	logger.Info("Session ended", "ticks", st.Ticks, "sent", st.Sent, "suppressed", st.Suppressed, "dropped", st.Dropped, "readErrors", st.ReadErrors)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Info("Exiting...")
		return nil
	}
	return err
}

// Calibrated reports whether an offset is in place.
func (s *Session) Calibrated() bool { return s.cond != nil }

// Mode returns the current transmission mode.
func (s *Session) Mode() condition.Mode { return s.machine.Mode() }

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return Stats{
		Ticks:      s.ticks.Load(),
		ReadErrors: s.readErrors.Load(),
		Sent:       s.sent.Load(),
		Suppressed: s.suppressed.Load(),
		Dropped:    s.dropped.Load(),
	}
}

// UseOffset installs a known offset, skipping calibration.
func (s *Session) UseOffset(off condition.Offset) error {
	cond, err := condition.NewConditioner(off, s.cfg.Threshold)
	if err != nil {
		return err
	}
	s.cond = cond
	return nil
}

// Calibrate collects resting samples and installs the resulting offset. A
// run that collects nothing is retried up to CalibrationAttempts times.
func (s *Session) Calibrate(ctx context.Context) (condition.Offset, error) {
	attempts := s.cfg.CalibrationAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		s.logger.Info("Calibrating, please don't touch the device", "samples", s.cfg.CalibrationSamples, "attempt", i)
		off, err := condition.Calibrate(ctx, s.dev, s.cfg.calibration(), s.logger)
		if err == nil {
			if err := s.UseOffset(off); err != nil {
				return condition.Offset{}, err
			}
			s.logger.Info("Calibration complete", "offset", off.Array(), "samples", off.Samples)
			return off, nil
		}
		if !errors.Is(err, condition.ErrCalibrationIncomplete) {
			return condition.Offset{}, err
		}
		lastErr = err
		s.logger.Warn("Calibration failed: no data received", "attempt", i, "attempts", attempts)
	}
	return condition.Offset{}, lastErr
}

// Step conditions one raw sample, feeds it to the activity machine and
// transmits it when the machine says so. Only a lost or closed connection is
// returned; a state that fails to encode is logged and dropped.
func (s *Session) Step(raw sample.Raw) (condition.Decision, error) {
	if s.cond == nil {
		return condition.Decision{}, fmt.Errorf("%w: session not calibrated", condition.ErrCalibrationIncomplete)
	}
	return s.emit(s.cond.Condition(raw))
}

// Run calibrates if needed and polls the device every Tick until ctx is
// done or the connection fails.
func (s *Session) Run(ctx context.Context) error {
	if s.cond == nil {
		if off, ok := s.cfg.fixedOffset(); ok {
			if err := s.UseOffset(off); err != nil {
				return err
			}
			s.logger.Info("Using configured offset", "offset", off.Array())
		} else if _, err := s.Calibrate(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("Streaming; move the device or press buttons", "tick", s.cfg.Tick, "sleepAfter", s.cfg.SleepAfter)
	s.inMode = stopwatch.Start(0)
	if s.cfg.QueueSize > 0 {
		return s.runPipelined(ctx)
	}
	return s.runSerial(ctx)
}

func (s *Session) runSerial(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		raw, ok := s.read()
		if !ok {
			continue
		}
		if _, err := s.Step(raw); err != nil {
			return err
		}
	}
}

// runPipelined reads and conditions on one goroutine and classifies and
// sends on the caller's. The channel keeps states in production order.
func (s *Session) runPipelined(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := make(chan sample.State, s.cfg.QueueSize)
	go func() {
		defer close(states)
		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			raw, ok := s.read()
			if !ok {
				continue
			}
			select {
			case states <- s.cond.Condition(raw):
			case <-ctx.Done():
				return
			}
		}
	}()

	for st := range states {
		if _, err := s.emit(st); err != nil {
			cancel()
			for range states {
			}
			return err
		}
	}
	return ctx.Err()
}

func (s *Session) read() (sample.Raw, bool) {
	s.ticks.Add(1)
	raw, err := s.dev.Read()
	if err == nil {
		if err = raw.Validate(); err != nil {
			err = fmt.Errorf("%w: %w", device.ErrRead, err)
		}
	}
	if err != nil {
		s.readErrors.Add(1)
		s.readFailures++
		if s.readFailures == 1 || s.readFailures%readErrorLogEvery == 0 {
			level := slog.LevelWarn
			if errors.Is(err, device.ErrNoData) {
				level = slog.LevelDebug
			}
			s.logger.Log(context.Background(), level, "Error reading device", "error", err, "consecutive", s.readFailures)
		}
		return sample.Raw{}, false
	}
	s.readFailures = 0
	return raw, true
}

// modeElapsed returns the time spent in the mode being left and restarts
// the clock for the next one.
func (s *Session) modeElapsed() time.Duration {
	d := s.inMode.ElapsedTime().Round(time.Millisecond)
	s.inMode = stopwatch.Start(0)
	return d
}

func (s *Session) emit(st sample.State) (condition.Decision, error) {
	d := s.machine.Observe(st)
	switch d.Transition {
	case condition.TransitionSleep:
		s.logger.Info("Detected zero states, entering sleep mode", "count", s.cfg.SleepAfter, "streamed", s.modeElapsed())
	case condition.TransitionWake:
		s.logger.Info("State changed, waking up", "slept", s.modeElapsed())
	}

	if !d.Transmit {
		s.suppressed.Add(1)
		return d, nil
	}
	if err := s.tx.Send(st); err != nil {
		if errors.Is(err, streamclient.ErrConnectionLost) || errors.Is(err, streamclient.ErrClosed) {
			return d, err
		}
		s.dropped.Add(1)
		s.logger.Warn("Dropped state", "error", err)
		return d, nil
	}
	s.sent.Add(1)
	return d, nil
}

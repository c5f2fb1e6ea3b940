// Package device defines the contract between the streaming session and the
// hardware (or simulated hardware) producing raw 6DOF samples.
package device

import (
	"errors"
	"time"

	"github.com/Alia5/dofstream/sample"
)

var (
	// ErrOpen is returned when a device cannot be opened. It is fatal for a session.
	ErrOpen = errors.New("device open failed")
	// ErrRead is returned for a transient read failure. The tick is skipped.
	ErrRead = errors.New("device read failed")
	// ErrNoData is returned when the device had no sample ready.
	ErrNoData = errors.New("device has no data")
	// ErrClosed is returned by Read on a device that is not open.
	ErrClosed = errors.New("device closed")
)

// Device yields raw samples.
//
// Read must not block indefinitely: a device with nothing to report returns
// ErrNoData (or an error wrapping ErrRead) within a bounded time.
// Close is idempotent and safe to call on a device that was never opened.
type Device interface {
	Open() error
	Read() (sample.Raw, error)
	Close() error
}

// Options carries backend-specific settings. Backends ignore fields that do
// not apply to them.
type Options struct {
	// Path is a serial port for "serial" or a script file for "replay".
	Path string `help:"Device path (serial port or replay script)" default:"" env:"DOFSTREAM_DEVICE_PATH"`
	// BaudRate applies to serial devices.
	BaudRate uint `help:"Serial baud rate" default:"115200" env:"DOFSTREAM_DEVICE_BAUD"`
	// ReadTimeout bounds a single Read.
	ReadTimeout time.Duration `help:"Upper bound for a single device read" default:"100ms" env:"DOFSTREAM_DEVICE_READ_TIMEOUT"`
	// Loop restarts finite sources (replay) when they run out.
	Loop bool `help:"Restart replay scripts when exhausted" default:"false"`
	// Buttons is the button count of simulated devices.
	Buttons int `help:"Button count of simulated devices" default:"2"`
	// Seed seeds the noise of simulated devices. Zero picks a time-based seed.
	Seed int64 `help:"Noise seed for simulated devices (0 = random)" default:"0"`
}

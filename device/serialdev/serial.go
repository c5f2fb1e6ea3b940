// Package serialdev reads 6DOF samples from a serial-attached controller,
// e.g. a microcontroller bridging a joystick or IMU.
//
// Every sample is one text line: six axis values followed by zero or more
// button flags, separated by whitespace or commas:
//
//	0.12 -0.03 0.00 0.41 0.00 -0.22 0 1
package serialdev

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"

	"github.com/jacobsa/go-serial/serial"
)

const (
	maxLineLength = 512
	readChunk     = 256
)

func init() {
	device.Register("serial", func(o *device.Options) (device.Device, error) {
		if o.Path == "" {
			return nil, fmt.Errorf("serial device requires a port path")
		}
		return New(o), nil
	})
}

// Device is a line-oriented serial controller.
type Device struct {
	mu      sync.Mutex
	opts    serial.OpenOptions
	openFn  func(serial.OpenOptions) (io.ReadWriteCloser, error)
	port    io.ReadWriteCloser
	buf     []byte
	pending []byte
}

// New prepares a serial device from options. The port is opened by Open.
func New(o *device.Options) *Device {
	baud := o.BaudRate
	if baud == 0 {
		baud = 115200
	}
	return &Device{
		opts: serial.OpenOptions{
			PortName:              o.Path,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			ParityMode:            serial.PARITY_NONE,
			MinimumReadSize:       0,
			InterCharacterTimeout: interCharTimeout(o.ReadTimeout),
		},
		openFn: serial.Open,
		buf:    make([]byte, readChunk),
	}
}

// interCharTimeout converts a read timeout to the 100ms granularity the
// serial driver supports, never returning zero so reads cannot block forever.
func interCharTimeout(d time.Duration) uint {
	ms := uint(d / time.Millisecond)
	if ms < 100 {
		return 100
	}
	return (ms + 99) / 100 * 100
}

// Open opens the serial port.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return nil
	}
	port, err := d.openFn(d.opts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", device.ErrOpen, d.opts.PortName, err)
	}
	d.port = port
	d.pending = d.pending[:0]
	return nil
}

// Read returns the next complete line as a sample. Partial lines are kept
// until the rest arrives.
func (d *Device) Read() (sample.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return sample.Raw{}, device.ErrClosed
	}

	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := bytes.TrimSpace(d.pending[:i])
			d.pending = append(d.pending[:0], d.pending[i+1:]...)
			if len(line) == 0 {
				continue
			}
			raw, err := ParseLine(string(line))
			if err != nil {
				return sample.Raw{}, fmt.Errorf("%w: %w", device.ErrRead, err)
			}
			return raw, nil
		}
		if len(d.pending) > maxLineLength {
			d.pending = d.pending[:0]
			return sample.Raw{}, fmt.Errorf("%w: line exceeds %d bytes", device.ErrRead, maxLineLength)
		}

		n, err := d.port.Read(d.buf)
		d.pending = append(d.pending, d.buf[:n]...)
		if err != nil {
			if err == io.EOF && n == 0 {
				return sample.Raw{}, device.ErrNoData
			}
			if err != io.EOF {
				return sample.Raw{}, fmt.Errorf("%w: %v", device.ErrRead, err)
			}
		}
		if n == 0 {
			return sample.Raw{}, device.ErrNoData
		}
	}
}

// Close closes the port. It is safe to call repeatedly.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// ParseLine parses one sample line.
func ParseLine(line string) (sample.Raw, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) < sample.NumAxes {
		return sample.Raw{}, fmt.Errorf("expected at least %d values, got %d in %q", sample.NumAxes, len(fields), line)
	}

	var axes [sample.NumAxes]float64
	for i := 0; i < sample.NumAxes; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return sample.Raw{}, fmt.Errorf("axis %s: %w", sample.AxisNames[i], err)
		}
		axes[i] = v
	}
	a := sample.AxesFromArray(axes)
	if err := a.Validate(); err != nil {
		return sample.Raw{}, err
	}

	flags := make([]int, 0, len(fields)-sample.NumAxes)
	for i, f := range fields[sample.NumAxes:] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return sample.Raw{}, fmt.Errorf("button %d: %w", i, err)
		}
		flags = append(flags, v)
	}
	return sample.Raw{Axes: a, Buttons: sample.ButtonsFromInts(flags...)}, nil
}

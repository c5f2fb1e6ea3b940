// Package mock provides a simulated 6DOF controller. It rests with a constant
// bias plus noise and is moved in periodic bursts, pressing its first button
// halfway through each burst.
package mock

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"
)

const (
	defaultPeriod   = 6 * time.Second
	defaultBurst    = 2 * time.Second
	defaultNoise    = 0.02
	defaultDropRate = 0.01
)

var defaultBias = sample.Axes{X: 0.03, Y: -0.02, Z: 0.01, Roll: 0.0, Pitch: 0.02, Yaw: -0.01}

func init() {
	device.Register("mock", func(o *device.Options) (device.Device, error) { return New(o), nil })
}

// Device is a simulated controller.
type Device struct {
	mu   sync.Mutex
	open bool

	bias     sample.Axes
	noise    float64
	dropRate float64
	buttons  int
	period   time.Duration
	burst    time.Duration

	seed  int64
	rng   *rand.Rand
	start time.Time
	now   func() time.Time
}

// New creates a simulated device. The device starts at rest once opened.
func New(o *device.Options) *Device {
	if o == nil {
		o = &device.Options{}
	}
	buttons := o.Buttons
	if buttons <= 0 {
		buttons = 2
	}
	return &Device{
		bias:     defaultBias,
		noise:    defaultNoise,
		dropRate: defaultDropRate,
		buttons:  buttons,
		period:   defaultPeriod,
		burst:    defaultBurst,
		seed:     o.Seed,
		now:      time.Now,
	}
}

// Bias returns the resting offset the device reports.
func (d *Device) Bias() sample.Axes { return d.bias }

// Open starts the simulation clock.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	seed := d.seed
	if seed == 0 {
		seed = d.now().UnixNano()
	}
	d.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	d.start = d.now()
	d.open = true
	return nil
}

// Read returns the current simulated sample. A small fraction of reads
// report ErrNoData, like a HID device without a fresh report.
func (d *Device) Read() (sample.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return sample.Raw{}, device.ErrClosed
	}
	if d.dropRate > 0 && d.rng.Float64() < d.dropRate {
		return sample.Raw{}, fmt.Errorf("%w: no fresh report", device.ErrNoData)
	}

	axes := d.bias.Map(func(v float64) float64 {
		return v + (d.rng.Float64()*2-1)*d.noise
	})
	buttons := make(sample.Buttons, d.buttons)

	// motion bursts occupy the tail of every period
	phase := d.now().Sub(d.start) % d.period
	if rest := d.period - d.burst; phase >= rest {
		t := float64(phase-rest) / float64(d.burst)
		axes.X += 0.6 * math.Sin(2*math.Pi*t)
		axes.Yaw += 0.4 * math.Sin(math.Pi*t)
		axes.Pitch -= 0.3 * math.Sin(math.Pi*t)
		if t >= 0.4 && t < 0.6 && len(buttons) > 0 {
			buttons[0] = true
		}
	}
	return sample.Raw{Axes: axes, Buttons: buttons}, nil
}

// Close stops the simulation.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

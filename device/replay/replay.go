// Package replay plays back raw samples from a YAML script.
//
// Script format:
//
//	loop: false
//	samples:
//	  - {x: 0.4, y: 0, z: 0, roll: 0, pitch: 0, yaw: 0, buttons: [0, 0]}
//	  - {buttons: [0, 0], repeat: 10}
//	  - {fail: true}
//	  - {buttons: [1, 0]}
//
// Omitted axes are zero. repeat plays an entry several times and fail makes
// the read report a transient failure.
package replay

import (
	"fmt"
	"os"
	"sync"

	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"

	yaml "gopkg.in/yaml.v3"
)

func init() {
	device.Register("replay", func(o *device.Options) (device.Device, error) {
		if o.Path == "" {
			return nil, fmt.Errorf("replay device requires a script path")
		}
		return NewFromFile(o.Path, o.Loop), nil
	})
}

// Script is the decoded form of a replay file.
type Script struct {
	Loop    bool    `yaml:"loop"`
	Samples []Entry `yaml:"samples"`
}

// Entry is one scripted reading.
type Entry struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Roll    float64 `yaml:"roll"`
	Pitch   float64 `yaml:"pitch"`
	Yaw     float64 `yaml:"yaw"`
	Buttons []int   `yaml:"buttons"`
	Repeat  int     `yaml:"repeat"`
	Fail    bool    `yaml:"fail"`
}

func (e Entry) axes() sample.Axes {
	return sample.Axes{X: e.X, Y: e.Y, Z: e.Z, Roll: e.Roll, Pitch: e.Pitch, Yaw: e.Yaw}
}

// Parse decodes a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse replay script: %w", err)
	}
	if len(s.Samples) == 0 {
		return nil, fmt.Errorf("replay script has no samples")
	}
	for i, e := range s.Samples {
		if e.Repeat < 0 {
			return nil, fmt.Errorf("sample %d: negative repeat %d", i, e.Repeat)
		}
		if err := e.axes().Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return &s, nil
}

type step struct {
	raw  sample.Raw
	fail bool
}

// Device replays a Script.
type Device struct {
	mu    sync.Mutex
	path  string
	loop  bool
	steps []step
	pos   int
	open  bool
}

// New returns a device replaying s. loop forces looping even when the script
// does not ask for it.
func New(s *Script, loop bool) *Device {
	d := &Device{loop: loop}
	d.load(s)
	return d
}

// NewFromFile returns a device that loads its script from path on Open.
func NewFromFile(path string, loop bool) *Device {
	return &Device{path: path, loop: loop}
}

func (d *Device) load(s *Script) {
	d.loop = d.loop || s.Loop
	d.steps = d.steps[:0]
	for _, e := range s.Samples {
		n := e.Repeat
		if n == 0 {
			n = 1
		}
		raw := sample.Raw{
			Axes:    e.axes(),
			Buttons: sample.ButtonsFromInts(e.Buttons...),
		}
		for i := 0; i < n; i++ {
			d.steps = append(d.steps, step{raw: raw, fail: e.Fail})
		}
	}
}

// Open loads the script (when created from a file) and rewinds it.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.path != "" {
		data, err := os.ReadFile(d.path)
		if err != nil {
			return fmt.Errorf("%w: %v", device.ErrOpen, err)
		}
		s, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%w: %v", device.ErrOpen, err)
		}
		d.load(s)
	}
	d.pos = 0
	d.open = true
	return nil
}

// Read returns the next scripted sample.
func (d *Device) Read() (sample.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return sample.Raw{}, device.ErrClosed
	}
	if d.pos >= len(d.steps) {
		if !d.loop || len(d.steps) == 0 {
			return sample.Raw{}, fmt.Errorf("%w: replay exhausted", device.ErrNoData)
		}
		d.pos = 0
	}
	st := d.steps[d.pos]
	d.pos++
	if st.fail {
		return sample.Raw{}, fmt.Errorf("%w: scripted failure at step %d", device.ErrRead, d.pos-1)
	}
	return sample.Raw{Axes: st.raw.Axes, Buttons: st.raw.Buttons.Clone()}, nil
}

// Remaining returns the number of steps left before the script ends.
func (d *Device) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.steps) - d.pos
}

// Close stops playback.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

package testing

import (
	"sync"

	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"
)

// Step is one scripted device read: a sample or an error.
type Step struct {
	Raw sample.Raw
	Err error
}

// Raw builds a raw sample from axis values and 0/1 button flags.
func Raw(x, y, z, roll, pitch, yaw float64, buttons ...int) sample.Raw {
	return sample.Raw{
		Axes:    sample.Axes{X: x, Y: y, Z: z, Roll: roll, Pitch: pitch, Yaw: yaw},
		Buttons: sample.ButtonsFromInts(buttons...),
	}
}

// Samples wraps raw samples into successful steps.
func Samples(raws ...sample.Raw) []Step {
	steps := make([]Step, len(raws))
	for i, r := range raws {
		steps[i] = Step{Raw: r}
	}
	return steps
}

// Repeat returns n copies of raw as steps.
func Repeat(raw sample.Raw, n int) []Step {
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{Raw: raw}
	}
	return steps
}

// ScriptedDevice implements device.Device by playing back a fixed list of
// steps. Once exhausted it reports device.ErrNoData and closes Exhausted.
type ScriptedDevice struct {
	mu        sync.Mutex
	steps     []Step
	pos       int
	openErr   error
	opens     int
	closes    int
	isOpen    bool
	exhausted chan struct{}
	once      sync.Once
}

// NewScriptedDevice creates a device playing steps in order.
func NewScriptedDevice(steps ...Step) *ScriptedDevice {
	return &ScriptedDevice{steps: steps, exhausted: make(chan struct{})}
}

// FailOpen makes Open return err.
func (d *ScriptedDevice) FailOpen(err error) *ScriptedDevice {
	d.openErr = err
	return d
}

func (d *ScriptedDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return d.openErr
	}
	d.isOpen = true
	return nil
}

func (d *ScriptedDevice) Read() (sample.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.steps) {
		d.once.Do(func() { close(d.exhausted) })
		return sample.Raw{}, device.ErrNoData
	}
	st := d.steps[d.pos]
	d.pos++
	return st.Raw, st.Err
}

func (d *ScriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.isOpen = false
	return nil
}

// Exhausted is closed on the first read past the end of the script.
func (d *ScriptedDevice) Exhausted() <-chan struct{} { return d.exhausted }

// Opens returns how often Open was called.
func (d *ScriptedDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how often Close was called.
func (d *ScriptedDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

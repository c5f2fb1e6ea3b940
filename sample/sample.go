// Package sample defines the 6DOF readings exchanged between a device, the
// conditioning pipeline and the wire.
package sample

import (
	"errors"
	"fmt"
	"math"
)

// NumAxes is the number of degrees of freedom carried by every sample.
const NumAxes = 6

// AxisNames lists the axes in wire order.
var AxisNames = [NumAxes]string{"x", "y", "z", "roll", "pitch", "yaw"}

// Axes holds one value per degree of freedom: x, y, z translation and
// roll, pitch, yaw rotation.
type Axes struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Array returns the axes in wire order.
func (a Axes) Array() [NumAxes]float64 {
	return [NumAxes]float64{a.X, a.Y, a.Z, a.Roll, a.Pitch, a.Yaw}
}

// AxesFromArray builds Axes from values in wire order.
func AxesFromArray(v [NumAxes]float64) Axes {
	return Axes{X: v[0], Y: v[1], Z: v[2], Roll: v[3], Pitch: v[4], Yaw: v[5]}
}

// Sub returns a - b per axis.
func (a Axes) Sub(b Axes) Axes {
	return Axes{
		X:     a.X - b.X,
		Y:     a.Y - b.Y,
		Z:     a.Z - b.Z,
		Roll:  a.Roll - b.Roll,
		Pitch: a.Pitch - b.Pitch,
		Yaw:   a.Yaw - b.Yaw,
	}
}

// Map applies fn to every axis independently.
func (a Axes) Map(fn func(float64) float64) Axes {
	return Axes{
		X:     fn(a.X),
		Y:     fn(a.Y),
		Z:     fn(a.Z),
		Roll:  fn(a.Roll),
		Pitch: fn(a.Pitch),
		Yaw:   fn(a.Yaw),
	}
}

// ErrNonFinite is returned for a reading holding NaN or an infinity.
var ErrNonFinite = errors.New("non-finite axis value")

// Validate reports the first axis that is NaN or infinite.
func (a Axes) Validate() error {
	for i, v := range a.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, AxisNames[i], v)
		}
	}
	return nil
}

// Raw is one unconditioned reading as produced by a device.
type Raw struct {
	Axes
	Buttons Buttons
}

// State is a conditioned sample: offset removed, deadzone applied and
// normalized to [-1, 1]. It is the unit sent over the wire.
type State struct {
	Axes
	Buttons Buttons `json:"buttons"`
}

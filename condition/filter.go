package condition

import (
	"errors"
	"fmt"
	"math"

	"github.com/Alia5/dofstream/sample"
)

// Epsilon is the magnitude at or below which an axis counts as zero.
const Epsilon = 1e-4

// ErrInvalidThreshold is returned for deadzone thresholds outside [0, 1).
var ErrInvalidThreshold = errors.New("invalid deadzone threshold")

// ValidateThreshold rejects thresholds that would make Normalize divide by zero
// or flip signs.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold >= 1 {
		return fmt.Errorf("%w: %v (must be in [0, 1))", ErrInvalidThreshold, threshold)
	}
	return nil
}

// ApplyDeadzone returns 0 when |v| < threshold and v otherwise.
func ApplyDeadzone(v, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

// Normalize stretches [threshold, 1] (and its negative mirror) back to [0, 1],
// keeping the sign. Values within Epsilon of zero become exactly 0.
func Normalize(v, threshold float64) float64 {
	if math.Abs(v) <= Epsilon {
		return 0
	}
	if v > 0 {
		return (v - threshold) / (1 - threshold)
	}
	return (v + threshold) / (1 - threshold)
}

// Conditioner applies offset removal, deadzone and normalization to raw
// samples.
type Conditioner struct {
	offset    Offset
	threshold float64
}

// NewConditioner returns a Conditioner for a calibrated device.
func NewConditioner(offset Offset, threshold float64) (*Conditioner, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if !offset.Valid() {
		return nil, fmt.Errorf("%w: offset has no samples", ErrCalibrationIncomplete)
	}
	return &Conditioner{offset: offset, threshold: threshold}, nil
}

// Offset returns the calibration offset in use.
func (c *Conditioner) Offset() Offset { return c.offset }

// Condition turns a raw reading into a State. Buttons pass through unchanged.
func (c *Conditioner) Condition(raw sample.Raw) sample.State {
	axes := raw.Axes.Sub(c.offset.Axes).Map(func(v float64) float64 {
		return Normalize(ApplyDeadzone(v, c.threshold), c.threshold)
	})
	return sample.State{Axes: axes, Buttons: raw.Buttons.Clone()}
}

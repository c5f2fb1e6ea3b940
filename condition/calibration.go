// Package condition turns raw device readings into conditioned states and
// decides which of them are worth transmitting.
//
// The pipeline is: subtract the calibration offset, apply the deadzone,
// normalize to [-1, 1], then feed the result to the activity Machine.
package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/dofstream/sample"
)

// ErrCalibrationIncomplete is returned when not a single sample could be
// collected. It is distinct from a successful calibration with a zero offset.
var ErrCalibrationIncomplete = errors.New("calibration incomplete")

// Reader yields raw samples. device.Device satisfies it.
type Reader interface {
	Read() (sample.Raw, error)
}

// CalibrationConfig controls how resting samples are collected.
type CalibrationConfig struct {
	Samples  int
	Interval time.Duration
	// MaxReads bounds the read attempts of one calibration run. Zero means
	// four times Samples.
	MaxReads int
}

// Offset is the resting bias of a device: the per-axis mean of the samples
// collected during calibration.
type Offset struct {
	sample.Axes
	// Samples is the number of readings the mean was computed from.
	Samples int
}

// Valid reports whether the offset was computed from at least one sample.
func (o Offset) Valid() bool { return o.Samples > 0 }

// Calibrate reads resting samples from r and returns their per-axis mean.
// Failed reads are logged and retried until MaxReads is exhausted.
func Calibrate(ctx context.Context, r Reader, cfg CalibrationConfig, logger *slog.Logger) (Offset, error) {
	if cfg.Samples <= 0 {
		return Offset{}, fmt.Errorf("calibration sample count must be positive, got %d", cfg.Samples)
	}
	maxReads := cfg.MaxReads
	if maxReads <= 0 {
		maxReads = 4 * cfg.Samples
	}

	var sums [sample.NumAxes]float64
	collected := 0
	reads := 0
	for collected < cfg.Samples && reads < maxReads {
		if reads > 0 {
			if err := sleepCtx(ctx, cfg.Interval); err != nil {
				return Offset{}, err
			}
		} else if err := ctx.Err(); err != nil {
			return Offset{}, err
		}
		reads++

		raw, err := r.Read()
		if err != nil {
			logger.Warn("calibration read failed", "attempt", reads, "error", err)
			continue
		}
		if err := raw.Validate(); err != nil {
			logger.Warn("calibration skipped reading", "attempt", reads, "error", err)
			continue
		}
		v := raw.Array()
		for i := range sums {
			sums[i] += v[i]
		}
		collected++
	}

	if collected == 0 {
		return Offset{}, fmt.Errorf("%w: no samples in %d reads", ErrCalibrationIncomplete, reads)
	}
	if collected < cfg.Samples {
		logger.Warn("calibration collected fewer samples than requested", "collected", collected, "requested", cfg.Samples)
	}

	var mean [sample.NumAxes]float64
	for i := range sums {
		mean[i] = sums[i] / float64(collected)
	}
	return Offset{Axes: sample.AxesFromArray(mean), Samples: collected}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

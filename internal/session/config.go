package session

import (
	"fmt"
	"time"

	"github.com/Alia5/dofstream/condition"
	"github.com/Alia5/dofstream/sample"
)

// Config holds the conditioning and polling parameters of a session.
type Config struct {
	Threshold           float64       `help:"Deadzone threshold applied after offset removal, in [0, 1)" default:"0.15" env:"DOFSTREAM_THRESHOLD"`
	CalibrationSamples  int           `help:"Resting samples averaged into the calibration offset" default:"50" env:"DOFSTREAM_CALIBRATION_SAMPLES"`
	CalibrationInterval time.Duration `help:"Delay between calibration reads" default:"50ms" env:"DOFSTREAM_CALIBRATION_INTERVAL"`
	CalibrationAttempts int           `help:"Calibration runs before giving up when no data arrives" default:"3" env:"DOFSTREAM_CALIBRATION_ATTEMPTS"`
	CalibrationMaxReads int           `help:"Read attempts per calibration run (0 = 4x samples)" default:"0" env:"DOFSTREAM_CALIBRATION_MAX_READS"`
	Offset              []float64     `help:"Fixed offset (x,y,z,roll,pitch,yaw) used instead of calibrating" env:"DOFSTREAM_OFFSET"`
	SleepAfter          int           `help:"Consecutive zero states before transmission is suspended" default:"10" env:"DOFSTREAM_SLEEP_AFTER"`
	Tick                time.Duration `help:"Polling period" default:"20ms" env:"DOFSTREAM_TICK"`
	QueueSize           int           `help:"Decouple reading and sending through a queue of this size (0 = single loop)" default:"0" env:"DOFSTREAM_QUEUE_SIZE"`
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:           0.15,
		CalibrationSamples:  50,
		CalibrationInterval: 50 * time.Millisecond,
		CalibrationAttempts: 3,
		SleepAfter:          condition.DefaultSleepAfter,
		Tick:                20 * time.Millisecond,
	}
}

// Validate checks the configuration before any resource is acquired.
func (c Config) Validate() error {
	if err := condition.ValidateThreshold(c.Threshold); err != nil {
		return err
	}
	if len(c.Offset) != 0 && len(c.Offset) != sample.NumAxes {
		return fmt.Errorf("offset needs %d values, got %d", sample.NumAxes, len(c.Offset))
	}
	if off, ok := c.fixedOffset(); ok {
		if err := off.Validate(); err != nil {
			return fmt.Errorf("offset: %w", err)
		}
	}
	if len(c.Offset) == 0 && c.CalibrationSamples <= 0 {
		return fmt.Errorf("calibration samples must be positive, got %d", c.CalibrationSamples)
	}
	if c.SleepAfter <= 0 {
		return fmt.Errorf("sleep-after must be positive, got %d", c.SleepAfter)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.Tick)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	return nil
}

func (c Config) calibration() condition.CalibrationConfig {
	return condition.CalibrationConfig{
		Samples:  c.CalibrationSamples,
		Interval: c.CalibrationInterval,
		MaxReads: c.CalibrationMaxReads,
	}
}

func (c Config) fixedOffset() (condition.Offset, bool) {
	if len(c.Offset) != sample.NumAxes {
		return condition.Offset{}, false
	}
	var v [sample.NumAxes]float64
	copy(v[:], c.Offset)
	return condition.Offset{Axes: sample.AxesFromArray(v), Samples: 1}, true
}

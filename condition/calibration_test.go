package condition_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dofstream/condition"
	"github.com/Alia5/dofstream/device"
	th "github.com/Alia5/dofstream/internal/testing"
	"github.com/Alia5/dofstream/sample"
)

func TestCalibrate(t *testing.T) {
	fail := th.Step{Err: device.ErrNoData}
	tests := []struct {
		name        string
		steps       []th.Step
		cfg         condition.CalibrationConfig
		want        sample.Axes
		wantSamples int
		wantErr     error
	}{
		{
			name: "mean of all samples",
			steps: th.Samples(
				th.Raw(0.1, 0, 0, 0, 0, 0.2),
				th.Raw(0.3, 0, 0, 0, 0, 0.4),
			),
			cfg:         condition.CalibrationConfig{Samples: 2},
			want:        sample.Axes{X: 0.2, Yaw: 0.3},
			wantSamples: 2,
		},
		{
			name: "failed reads are skipped",
			steps: []th.Step{
				fail,
				{Raw: th.Raw(1, 1, 1, 1, 1, 1)},
				fail,
				{Raw: th.Raw(3, 3, 3, 3, 3, 3)},
			},
			cfg:         condition.CalibrationConfig{Samples: 2},
			want:        sample.Axes{X: 2, Y: 2, Z: 2, Roll: 2, Pitch: 2, Yaw: 2},
			wantSamples: 2,
		},
		{
			name: "partial collection uses what it got",
			steps: []th.Step{
				{Raw: th.Raw(0.5, 0, 0, 0, 0, 0)},
				fail, fail, fail,
			},
			cfg:         condition.CalibrationConfig{Samples: 3, MaxReads: 4},
			want:        sample.Axes{X: 0.5},
			wantSamples: 1,
		},
		{
			name: "non-finite readings are skipped",
			steps: th.Samples(
				th.Raw(math.NaN(), 0, 0, 0, 0, 0),
				th.Raw(0.4, 0, 0, 0, 0, 0),
				th.Raw(0, math.Inf(-1), 0, 0, 0, 0),
				th.Raw(0.2, 0, 0, 0, 0, 0),
			),
			cfg:         condition.CalibrationConfig{Samples: 2},
			want:        sample.Axes{X: 0.3},
			wantSamples: 2,
		},
		{
			name:    "only non-finite readings",
			steps:   th.Samples(th.Raw(math.NaN(), 0, 0, 0, 0, 0), th.Raw(0, 0, math.Inf(1), 0, 0, 0)),
			cfg:     condition.CalibrationConfig{Samples: 2, MaxReads: 2},
			wantErr: condition.ErrCalibrationIncomplete,
		},
		{
			name:    "no samples",
			steps:   []th.Step{fail, fail, fail},
			cfg:     condition.CalibrationConfig{Samples: 2, MaxReads: 3},
			wantErr: condition.ErrCalibrationIncomplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := th.NewScriptedDevice(tt.steps...)
			off, err := condition.Calibrate(context.Background(), dev, tt.cfg, slog.Default())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, off.Valid())
				return
			}
			require.NoError(t, err)
			assert.True(t, off.Valid())
			assert.Equal(t, tt.wantSamples, off.Samples)
			want, got := tt.want.Array(), off.Array()
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-9, sample.AxisNames[i])
			}
		})
	}
}

func TestCalibrate_ZeroOffsetIsSuccess(t *testing.T) {
	dev := th.NewScriptedDevice(th.Repeat(th.Raw(0, 0, 0, 0, 0, 0), 5)...)
	off, err := condition.Calibrate(context.Background(), dev, condition.CalibrationConfig{Samples: 5}, slog.Default())
	require.NoError(t, err)
	assert.True(t, off.Valid())
	assert.Equal(t, sample.Axes{}, off.Axes)
}

func TestCalibrate_InvalidCount(t *testing.T) {
	_, err := condition.Calibrate(context.Background(), th.NewScriptedDevice(), condition.CalibrationConfig{}, slog.Default())
	require.Error(t, err)
	assert.False(t, errors.Is(err, condition.ErrCalibrationIncomplete))
}

func TestCalibrate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := condition.Calibrate(ctx, th.NewScriptedDevice(th.Repeat(th.Raw(0, 0, 0, 0, 0, 0), 3)...), condition.CalibrationConfig{Samples: 3}, slog.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

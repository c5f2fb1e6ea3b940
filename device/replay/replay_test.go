package replay_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/device/replay"
	"github.com/Alia5/dofstream/sample"
)

const script = `
samples:
  - {x: 0.4, yaw: -0.2, buttons: [0, 1]}
  - {buttons: [0, 0], repeat: 3}
  - {fail: true}
  - {pitch: 1}
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{name: "valid", in: script},
		{name: "empty", in: "samples: []", wantErr: "no samples"},
		{name: "negative repeat", in: "samples:\n  - {repeat: -1}", wantErr: "negative repeat"},
		{name: "not yaml", in: "samples: [", wantErr: "parse replay script"},
		{name: "nan axis", in: "samples:\n  - {x: .nan}", wantErr: "non-finite axis value"},
		{name: "infinite axis", in: "samples:\n  - {}\n  - {yaw: -.inf}", wantErr: "sample 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := replay.Parse([]byte(tt.in))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.Samples, 4)
			assert.Equal(t, 3, s.Samples[1].Repeat)
		})
	}
}

func TestDevice_Read(t *testing.T) {
	s, err := replay.Parse([]byte(script))
	require.NoError(t, err)
	d := replay.New(s, false)

	_, err = d.Read()
	assert.ErrorIs(t, err, device.ErrClosed)

	require.NoError(t, d.Open())
	assert.Equal(t, 6, d.Remaining())

	raw, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, sample.Axes{X: 0.4, Yaw: -0.2}, raw.Axes)
	assert.Equal(t, sample.ButtonsFromInts(0, 1), raw.Buttons)

	for range 3 {
		raw, err = d.Read()
		require.NoError(t, err)
		assert.Equal(t, sample.Axes{}, raw.Axes)
	}

	_, err = d.Read()
	assert.ErrorIs(t, err, device.ErrRead)

	raw, err = d.Read()
	require.NoError(t, err)
	assert.Equal(t, 1.0, raw.Pitch)

	_, err = d.Read()
	assert.ErrorIs(t, err, device.ErrNoData)
	require.NoError(t, d.Close())
}

func TestDevice_Loop(t *testing.T) {
	s, err := replay.Parse([]byte("samples:\n  - {x: 1}\n  - {x: 2}\n"))
	require.NoError(t, err)
	d := replay.New(s, true)
	require.NoError(t, d.Open())

	var xs []float64
	for range 5 {
		raw, err := d.Read()
		require.NoError(t, err)
		xs = append(xs, raw.X)
	}
	assert.Equal(t, []float64{1, 2, 1, 2, 1}, xs)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loop: true\nsamples:\n  - {z: 0.5}\n"), 0o644))

	d, err := device.New("replay", &device.Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, d.Open())
	defer d.Close()

	for range 3 {
		raw, err := d.Read()
		require.NoError(t, err)
		assert.Equal(t, 0.5, raw.Z)
	}
}

func TestNewFromFile_Errors(t *testing.T) {
	_, err := device.New("replay", &device.Options{})
	assert.Error(t, err)

	d := replay.NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.ErrorIs(t, d.Open(), device.ErrOpen)
}

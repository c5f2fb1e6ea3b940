package sample_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dofstream/sample"
)

func TestState_MarshalBinary(t *testing.T) {
	st := sample.State{
		Axes:    sample.Axes{X: 0.5, Yaw: -0.25},
		Buttons: sample.Buttons{false, true},
	}
	b, err := st.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, `{"x":0.5,"y":0,"z":0,"roll":0,"pitch":0,"yaw":-0.25,"buttons":[0,1]}`+"\n", string(b))

	var got sample.State
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, st, got)
}

func TestState_UnmarshalBinary(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    sample.State
		wantErr error
	}{
		{
			name: "numeric buttons",
			in:   `{"x":1,"y":0,"z":0,"roll":0,"pitch":0,"yaw":0,"buttons":[1,0,2]}`,
			want: sample.State{Axes: sample.Axes{X: 1}, Buttons: sample.Buttons{true, false, true}},
		},
		{
			name: "boolean buttons",
			in:   `{"x":0,"y":0,"z":0,"roll":0.3,"pitch":0,"yaw":0,"buttons":[false,true]}`,
			want: sample.State{Axes: sample.Axes{Roll: 0.3}, Buttons: sample.Buttons{false, true}},
		},
		{
			name: "surrounding whitespace",
			in:   "  {\"x\":0,\"y\":-1,\"z\":0,\"roll\":0,\"pitch\":0,\"yaw\":0,\"buttons\":[]}\r\n",
			want: sample.State{Axes: sample.Axes{Y: -1}, Buttons: sample.Buttons{}},
		},
		{
			name:    "empty",
			in:      " \n",
			wantErr: sample.ErrEmptyFrame,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st sample.State
			err := st.UnmarshalBinary([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
		})
	}
}

func TestState_UnmarshalBinary_InvalidButton(t *testing.T) {
	var st sample.State
	err := st.UnmarshalBinary([]byte(`{"x":0,"buttons":["yes"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buttons[0]")
}

func TestDecoder_SplitsAcrossReads(t *testing.T) {
	stream := `{"x":0.1,"y":0,"z":0,"roll":0,"pitch":0,"yaw":0,"buttons":[0]}` + "\n" +
		"\n" +
		`{"x":0,"y":0.2,"z":0,"roll":0,"pitch":0,"yaw":0,"buttons":[1]}` + "\n" +
		`{"x":0,"y":0,"z":0.3,"roll":0,"pitch":0,"yaw":0,"buttons":[0]}`

	dec := sample.NewDecoder(iotest.OneByteReader(strings.NewReader(stream)))

	var got []sample.State
	for {
		st, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, st)
	}
	require.Len(t, got, 3)
	assert.InDelta(t, 0.1, got[0].X, 1e-9)
	assert.InDelta(t, 0.2, got[1].Y, 1e-9)
	assert.Equal(t, sample.Buttons{true}, got[1].Buttons)
	assert.InDelta(t, 0.3, got[2].Z, 1e-9)
}

func TestDecoder_MalformedFrameIsRecoverable(t *testing.T) {
	stream := "not json\n" +
		`{"x":0,"y":0,"z":0,"roll":0,"pitch":0,"yaw":1,"buttons":[]}` + "\n"
	dec := sample.NewDecoder(strings.NewReader(stream))

	_, err := dec.Decode()
	var fe *sample.FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "not json", string(fe.Frame))

	st, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Yaw)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_OversizedFrameIsDiscarded(t *testing.T) {
	valid := `{"x":0.25,"y":0,"z":0,"roll":0,"pitch":0,"yaw":0,"buttons":[1]}`
	tests := []struct {
		name   string
		stream string
	}{
		{"terminated", strings.Repeat("a", 100) + "\n" + valid + "\n"},
		{"spans buffer refills", strings.Repeat("b", 10000) + "\n" + valid + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := sample.NewDecoderSize(strings.NewReader(tt.stream), len(valid))

			_, err := dec.Decode()
			var fe *sample.FrameError
			require.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, sample.ErrFrameTooLarge)
			assert.LessOrEqual(t, len(fe.Frame), 64)

			st, err := dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, 0.25, st.X)

			_, err = dec.Decode()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestDecoder_UnterminatedOversizedFrame(t *testing.T) {
	dec := sample.NewDecoderSize(strings.NewReader(strings.Repeat("c", 5000)), 16)

	_, err := dec.Decode()
	assert.ErrorIs(t, err, sample.ErrFrameTooLarge)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

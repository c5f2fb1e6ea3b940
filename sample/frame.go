package sample

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// MaxFrameSize bounds the payload of a single frame.
const MaxFrameSize = 64 << 10

var (
	// ErrEmptyFrame is returned when a frame carries no payload.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrFrameTooLarge is returned for a frame exceeding the decoder limit.
	// The rest of that frame is discarded.
	ErrFrameTooLarge = errors.New("frame too large")
)

// quoted in a FrameError
const maxFramePreview = 64

// FrameError reports a frame that could not be decoded. The stream it came
// from is still usable.
type FrameError struct {
	Frame []byte
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// MarshalBinary encodes the state as one JSON object followed by the frame
// delimiter.
//
// Frame layout:
//
//	{"x":0.1,"y":0,"z":0,"roll":0,"pitch":0,"yaw":-0.5,"buttons":[0,1]}\n
func (s *State) MarshalBinary() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(b, Delimiter), nil
}

// UnmarshalBinary decodes a single frame. The trailing delimiter is optional.
func (s *State) UnmarshalBinary(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrEmptyFrame
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	*s = st
	return nil
}

// Decoder splits a byte stream into frames and decodes them one by one.
// Frames may span any number of underlying reads.
type Decoder struct {
	r     *bufio.Reader
	limit int
	line  []byte
	// discarding the tail of an oversized frame
	skip bool
}

// NewDecoder returns a Decoder reading from r with a limit of MaxFrameSize.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, MaxFrameSize)
}

// NewDecoderSize returns a Decoder rejecting frames longer than limit bytes.
func NewDecoderSize(r io.Reader, limit int) *Decoder {
	if limit <= 0 {
		limit = MaxFrameSize
	}
	return &Decoder{r: bufio.NewReader(r), limit: limit}
}

// Decode returns the next frame. Blank lines are skipped. A malformed or
// oversized frame yields a *FrameError and decoding may continue with the
// next call. io.EOF is returned once the stream is exhausted.
func (d *Decoder) Decode() (State, error) {
	for {
		line, err := d.readLine()
		if errors.Is(err, ErrFrameTooLarge) {
			return State{}, &FrameError{Frame: preview(line), Err: err}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return State{}, err
		}
		payload := bytes.TrimSpace(line)
		if len(payload) == 0 {
			if err != nil {
				return State{}, io.EOF
			}
			continue
		}

		var st State
		if uerr := st.UnmarshalBinary(payload); uerr != nil {
			return State{}, &FrameError{Frame: preview(payload), Err: uerr}
		}
		return st, nil
	}
}

// readLine returns the next line including its delimiter. The slice is only
// valid until the next call.
func (d *Decoder) readLine() ([]byte, error) {
	d.line = d.line[:0]
	for {
		chunk, err := d.r.ReadSlice(Delimiter)
		if d.skip {
			switch {
			case err == nil:
				d.skip = false
			case errors.Is(err, bufio.ErrBufferFull):
			default:
				return nil, err
			}
			continue
		}

		d.line = append(d.line, chunk...)
		size := len(d.line)
		if err == nil {
			size--
		}
		if size > d.limit {
			d.skip = errors.Is(err, bufio.ErrBufferFull)
			return d.line, fmt.Errorf("%w: more than %d bytes", ErrFrameTooLarge, d.limit)
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return d.line, err
		}
	}
}

func preview(b []byte) []byte {
	if len(b) > maxFramePreview {
		b = b[:maxFramePreview]
	}
	return bytes.Clone(b)
}

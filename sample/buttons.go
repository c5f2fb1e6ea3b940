package sample

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Buttons is the ordered button vector reported by a device. Its length is
// fixed by the device and the order is significant.
type Buttons []bool

// ButtonsFromInts converts 0/1 flags into Buttons. Any non-zero value is a
// pressed button.
func ButtonsFromInts(flags ...int) Buttons {
	b := make(Buttons, len(flags))
	for i, f := range flags {
		b[i] = f != 0
	}
	return b
}

// Any reports whether at least one button is pressed.
func (b Buttons) Any() bool {
	for _, v := range b {
		if v {
			return true
		}
	}
	return false
}

// Equal compares two vectors element by element. Vectors of different
// length are never equal.
func (b Buttons) Equal(o Buttons) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (b Buttons) Clone() Buttons {
	if b == nil {
		return nil
	}
	out := make(Buttons, len(b))
	copy(out, b)
	return out
}

// MarshalJSON encodes the vector as an array of 0/1 flags.
func (b Buttons) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		if v {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an array of booleans or numbers (non-zero = pressed).
func (b *Buttons) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("buttons: %w", err)
	}
	out := make(Buttons, len(raw))
	for i, r := range raw {
		switch s := string(bytes.TrimSpace(r)); s {
		case "true":
			out[i] = true
		case "false":
			out[i] = false
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("buttons[%d]: invalid flag %s", i, s)
			}
			out[i] = f != 0
		}
	}
	*b = out
	return nil
}

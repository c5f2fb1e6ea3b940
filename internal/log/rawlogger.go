package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger taps frames as they cross the wire.
type RawLogger interface {
	Log(out bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil writer yields a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one line per call: timestamp, direction, length and the frame
// text without its delimiter. out=true means transmitted, false received.
func (r *rawLogger) Log(out bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	dir := "RX"
	if out {
		dir = "TX"
	}

	line := fmt.Sprintf("%s %s %d bytes: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		dir,
		len(data),
		bytes.TrimRight(data, "\r\n"))

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}

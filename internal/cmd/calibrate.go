package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/dofstream/condition"
	"github.com/Alia5/dofstream/device"
	"github.com/Alia5/dofstream/sample"
)

// Calibrate measures the resting offset of a device and prints it in a form
// that can be passed back via --pipeline.offset.
type Calibrate struct {
	Device   DeviceConfig  `embed:"" prefix:"device."`
	Samples  int           `help:"Resting samples to average" default:"50" env:"DOFSTREAM_CALIBRATION_SAMPLES"`
	Interval time.Duration `help:"Delay between reads" default:"50ms" env:"DOFSTREAM_CALIBRATION_INTERVAL"`
	MaxReads int           `help:"Read attempts before giving up (0 = 4x samples)" default:"0" env:"DOFSTREAM_CALIBRATION_MAX_READS"`
	Wait     bool          `help:"Ask for confirmation before sampling (interactive terminals only)" default:"false"`
	Format   string        `help:"Output format" enum:"text,json" default:"text"`

	out io.Writer `kong:"-"`
}

// Run is called by Kong when the calibrate command is executed.
func (c *Calibrate) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := c.Device.create()
	if err != nil {
		return err
	}
	if err := dev.Open(); err != nil {
		return fmt.Errorf("%w: %v", device.ErrOpen, err)
	}
	defer dev.Close()

	if c.Wait {
		c.waitForEnter()
	}
	return c.measure(ctx, dev, logger)
}

func (c *Calibrate) measure(ctx context.Context, r condition.Reader, logger *slog.Logger) error {
	off, err := condition.Calibrate(ctx, r, condition.CalibrationConfig{
		Samples:  c.Samples,
		Interval: c.Interval,
		MaxReads: c.MaxReads,
	}, logger)
	if err != nil {
		return err
	}
	return writeOffset(outOrStdout(c.out), off, c.Format)
}

// waitForEnter blocks until the user confirms. Without a terminal there is
// nobody to ask, so it returns immediately.
func (c *Calibrate) waitForEnter() {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	fmt.Fprint(os.Stderr, "Leave the device at rest and press Enter to start calibration...")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}

func writeOffset(w io.Writer, off condition.Offset, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			sample.Axes
			Samples int `json:"samples"`
		}{off.Axes, off.Samples})
	}

	vals := off.Array()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	for i, name := range sample.AxisNames {
		if _, err := fmt.Fprintf(w, "%-6s %s\n", name, parts[i]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "samples %d\n--pipeline.offset=%s\n", off.Samples, strings.Join(parts, ","))
	return err
}

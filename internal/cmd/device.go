package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Alia5/dofstream/device"
)

// DeviceConfig selects and configures a device backend.
type DeviceConfig struct {
	Type           string `help:"Device backend (see 'dofstream devices')" default:"mock" env:"DOFSTREAM_DEVICE"`
	device.Options `embed:""`
}

func (c *DeviceConfig) create() (device.Device, error) {
	dev, err := device.New(c.Type, &c.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrOpen, err)
	}
	return dev, nil
}

// Devices lists the registered device backends.
type Devices struct {
	out io.Writer `kong:"-"`
}

// Run is called by Kong when the devices command is executed.
func (d *Devices) Run(logger *slog.Logger) error {
	w := outOrStdout(d.out)
	for _, name := range device.Types() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

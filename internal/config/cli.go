// Package config defines the root command line of dofstream.
package config

import (
	"github.com/Alia5/dofstream/internal/cmd"
	"github.com/Alia5/dofstream/internal/log"
)

// CLI is parsed by kong. Values come from flags, environment variables and
// config files, in that order of precedence.
type CLI struct {
	ConfigFile string     `name:"config" help:"Config file (json, yaml or toml)" type:"path" env:"DOFSTREAM_CONFIG"`
	Log        log.Config `embed:"" prefix:"log."`

	Stream    cmd.Stream        `cmd:"" help:"Calibrate a device and stream its conditioned samples to an ingester"`
	Ingest    cmd.Ingest        `cmd:"" help:"Receive a stream and print or republish its frames"`
	Calibrate cmd.Calibrate     `cmd:"" help:"Measure and print the resting offset of a device"`
	Devices   cmd.Devices       `cmd:"" help:"List available device backends"`
	Config    cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
}

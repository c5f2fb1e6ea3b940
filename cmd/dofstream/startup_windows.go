//go:build windows

package main

import (
	"log/slog"
	"os"

	"github.com/Alia5/dofstream/internal/console"
)

// A double-clicked binary has no way to receive arguments, so it streams the
// simulated device to a local ingester.
func init() {
	if !console.StartedFromExplorer() {
		return
	}
	if len(os.Args) >= 2 && os.Args[1] == "stream" {
		return
	}
	slog.Info("Detected GUI startup, injecting 'stream' argument")
	slog.Warn("Run from a CLI for more options!")
	os.Args = append([]string{os.Args[0], "stream"}, os.Args[1:]...)
}

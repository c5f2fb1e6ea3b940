//go:build !windows

// Package console detects how the process was started.
package console

// StartedFromExplorer reports whether the binary was double-clicked rather
// than run from a shell. Only Windows can tell; elsewhere it is always false.
func StartedFromExplorer() bool { return false }

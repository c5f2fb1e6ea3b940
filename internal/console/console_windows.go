//go:build windows

// Package console detects how the process was started.
package console

import (
	"log/slog"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetConsoleWindow = kernel32.NewProc("GetConsoleWindow")
)

var shells = map[string]bool{
	"cmd.exe":             true,
	"powershell.exe":      true,
	"pwsh.exe":            true,
	"wt.exe":              true,
	"conhost.exe":         true,
	"windowsterminal.exe": true,
}

// StartedFromExplorer reports whether the binary was double-clicked rather
// than run from a shell.
func StartedFromExplorer() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	parent := strings.ToLower(parentName())
	slog.Debug("Parent process", "name", parent, "hasConsole", hwnd != 0)

	if hwnd == 0 {
		return true
	}
	if shells[parent] {
		return false
	}
	return parent == "explorer.exe"
}

// parentName walks a process snapshot once, remembering every executable by
// PID, and returns the name of our parent.
func parentName() string {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(snapshot)

	self := uint32(os.Getpid())
	var parent uint32
	names := make(map[uint32]string)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	for err := windows.Process32First(snapshot, &pe); err == nil; err = windows.Process32Next(snapshot, &pe) {
		names[pe.ProcessID] = windows.UTF16ToString(pe.ExeFile[:])
		if pe.ProcessID == self {
			parent = pe.ParentProcessID
		}
	}
	if parent == 0 {
		return ""
	}
	return names[parent]
}

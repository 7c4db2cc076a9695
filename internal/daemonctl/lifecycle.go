// Package daemonctl carries simbiotad's daemon lifecycle plumbing: PID
// file management, stale-daemon recovery, a startup status file for
// --bg callers to poll, and the shutdown grace period spec §5 requires
// (the shutdown sequence itself is driven by cmd/simbiotad). Adapted
// from the teacher's pkg/daemon lifecycle/lockrecovery/
// status files.
package daemonctl

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrDaemonAlreadyRunning is returned when a PID file names a live process.
var ErrDaemonAlreadyRunning = errors.New("simbiotad: daemon already running")

// WritePIDFile writes the current process ID to path.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile reads a PID previously written by WritePIDFile.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// IsProcessRunning checks liveness by sending signal 0, which the kernel
// delivers to nobody but still reports ESRCH for if the pid is dead.
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsDaemonRunning reports whether the PID file at pidPath names a live
// process.
func IsDaemonRunning(pidPath string) bool {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return false
	}
	return IsProcessRunning(pid)
}

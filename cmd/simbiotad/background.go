package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/simbiota/simbiotad/internal/daemonctl"
)

// pollStatusInterval controls how often the parent checks the child's
// status file while waiting for startup to finish.
const pollStatusInterval = 100 * time.Millisecond

// statusWait bounds how long the parent waits for the child to report
// ready or error before giving up and reporting a generic failure.
const statusWait = 30 * time.Second

// daemonizeInBackground re-execs the current binary without --bg in a new
// session (setsid-equivalent), mirroring the original daemon's
// restart_in_bg. The parent waits on the child's status file and exits
// with the child's own reported outcome, so a --bg invocation's exit
// code still reflects real startup success or failure rather than always
// returning 0 the instant the fork succeeds.
func daemonizeInBackground() error {
	paths := daemonctl.DefaultPaths()
	_ = os.Remove(paths.StatusFile)

	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "--bg" {
			args = append(args, a)
		}
	}

	self, err := os.Executable()
	if err != nil {
		return exitError(ExitConfigError)
	}

	cmd := exec.Command(self, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = append(os.Environ(), bgChildEnvVar+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "simbiota: failed to start background process:", err)
		return exitError(ExitConfigError)
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(statusWait)
	for time.Now().Before(deadline) {
		status, err := daemonctl.ReadStatus(paths.StatusFile)
		if err == nil {
			switch status.Status {
			case "ready":
				fmt.Printf("simbiota started in background, pid %d\n", status.PID)
				return nil
			case "error":
				fmt.Fprintln(os.Stderr, "simbiota: background startup failed:", status.Error)
				return exitError(ExitConfigError)
			}
		}
		time.Sleep(pollStatusInterval)
	}

	fmt.Fprintln(os.Stderr, "simbiota: timed out waiting for background process to report status")
	return exitError(ExitConfigError)
}

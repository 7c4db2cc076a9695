package main

import "fmt"

// Exit codes, per spec §2.3's CLI contract.
const (
	ExitOK              = 0
	ExitConfigError     = 1
	ExitPermissionError = 2
	ExitDatabaseError   = 3
	ExitFanotifyError   = 4
)

// exitError carries a specific process exit code out of cobra's RunE,
// which otherwise only distinguishes "error" from "no error". The
// message has already been logged or printed by the time this is
// returned; Error() exists only to satisfy the error interface.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// Package fanotify wraps the Linux fanotify API (golang.org/x/sys/unix) as
// the Event Source component: mark installation, the blocking read loop,
// and permission-event response writeback. The event buffer parsing and
// flag enumerations mirror the original's fanotify-monitor crate
// (monitor.rs, low_level/low_level_linux.rs), translated from Rust
// bitflags into Go bitmask constants.
package fanotify

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// EventMask is the set of fanotify event kinds to watch for on a mark.
type EventMask uint64

const (
	Access        EventMask = unix.FAN_ACCESS
	Modify        EventMask = unix.FAN_MODIFY
	CloseWrite    EventMask = unix.FAN_CLOSE_WRITE
	CloseNowrite  EventMask = unix.FAN_CLOSE_NOWRITE
	Open          EventMask = unix.FAN_OPEN
	OpenExec      EventMask = unix.FAN_OPEN_EXEC
	OpenPerm      EventMask = unix.FAN_OPEN_PERM
	OpenExecPerm  EventMask = unix.FAN_OPEN_EXEC_PERM
	AccessPerm    EventMask = unix.FAN_ACCESS_PERM
	OnDir         EventMask = unix.FAN_ONDIR
	EventOnChild  EventMask = unix.FAN_EVENT_ON_CHILD
)

// IsPermEvent reports whether any bit in the mask requires a bounded-time
// Allow/Deny response write (spec §4.E).
func (m EventMask) IsPermEvent() bool {
	return m&(OpenPerm|OpenExecPerm|AccessPerm) != 0
}

// ParseEventMask parses the mask[] config strings (spec §6) into an
// EventMask, matching the original's EventMask::parse.
func ParseEventMask(flags []string) (EventMask, error) {
	var mask EventMask
	for _, flag := range flags {
		switch strings.ToUpper(flag) {
		case "ACCESS":
			mask |= Access
		case "MODIFY":
			mask |= Modify
		case "CLOSE_WRITE":
			mask |= CloseWrite
		case "CLOSE_NOWRITE":
			mask |= CloseNowrite
		case "OPEN":
			mask |= Open
		case "OPEN_EXEC":
			mask |= OpenExec
		case "OPEN_PERM":
			mask |= OpenPerm
		case "OPEN_EXEC_PERM":
			mask |= OpenExecPerm
		case "ACCESS_PERM":
			mask |= AccessPerm
		default:
			return 0, fmt.Errorf("invalid mask flag: %s", flag)
		}
	}
	return mask, nil
}

// MarkFlags are the FAN_MARK_* flags that describe what a mark attaches to.
type MarkFlags uint

const (
	markAdd        MarkFlags = unix.FAN_MARK_ADD
	MarkDontFollow MarkFlags = unix.FAN_MARK_DONT_FOLLOW
	MarkOnlyDir    MarkFlags = unix.FAN_MARK_ONLYDIR
	MarkMount      MarkFlags = unix.FAN_MARK_MOUNT
	MarkFilesystem MarkFlags = unix.FAN_MARK_FILESYSTEM
)

// InitFlags are the FAN_CLASS_*/FAN_* flags passed to fanotify_init.
const (
	initClassContent  = unix.FAN_CLASS_CONTENT
	initUnlimitedMarks = unix.FAN_UNLIMITED_MARKS
	initUnlimitedQueue = unix.FAN_UNLIMITED_QUEUE
	initCloexec        = unix.FAN_CLOEXEC
)

// DefaultInitFlags matches the original's DEFAULT_MONITOR_FLAGS:
// CLOEXEC | UNLIMITED_MARKS | UNLIMITED_QUEUE, with the FAN_CLASS_CONTENT
// notification class (content-scope: events are delivered before the
// kernel allows access, so the daemon can still deny it).
const DefaultInitFlags = initClassContent | initUnlimitedMarks | initUnlimitedQueue | initCloexec

// DefaultEventFlags is the set of flags used to open the file description
// the kernel hands back for each event (O_RDONLY | O_LARGEFILE, matching
// the original's default event_f_flags).
const DefaultEventFlags = unix.O_RDONLY | unix.O_LARGEFILE

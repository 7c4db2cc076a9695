// Package quarantine implements the quarantine manager: it atomically
// moves a malicious file into a root-owned, restricted directory and
// records a sidecar metadata record describing where it came from.
package quarantine

import "time"

// Entry describes one quarantined file.
type Entry struct {
	ID           string
	OriginalPath string
	Timestamp    time.Time
	Verdict      string // e.g. "malicious:<signature name>"
}

// sidecar path suffix, mirroring the original's ".{id}.info" convention.
const sidecarSuffix = ".info"

// Package alert implements the Alert Sink: a fire-and-forget fan-out of
// detection events to pluggable collaborators (log, email). Nothing here
// ever blocks the Scan Pipeline — a dedicated worker drains the queue,
// mirroring the original's thread-per-detection dispatch in
// detection_system.rs's file_detected_action.
package alert

import (
	"time"

	"github.com/simbiota/simbiotad/internal/classify"
)

// DetectionEvent is the payload handed to the Alert Sink for every
// positive (and, for database-reload failures, informational) detection,
// matching spec §4.H's DetectionEvent(path, verdict, identity, timestamp).
type DetectionEvent struct {
	Path         string
	Size         int64
	Verdict      classify.Verdict
	Matched      *classify.MatchedSignature
	QuarantineID string // empty if quarantine disabled or failed
	Time         time.Time
	Note         string // set for non-detection alerts, e.g. database reload failure
}

// Sink is one fan-out collaborator. Notify must not block for long —
// the dispatcher calls every sink sequentially from its single drain
// worker, so a slow sink delays the others.
type Sink interface {
	Notify(event DetectionEvent)
}

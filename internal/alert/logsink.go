package alert

import "github.com/simbiota/simbiotad/internal/logging"

// LogSink records every detection event through the logging package. It
// is always enabled, independent of the email sink's configuration —
// there must always be a durable local record of a detection.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{log: logging.Get("alert")}
}

// Notify implements Sink.
func (s *LogSink) Notify(event DetectionEvent) {
	if event.Note != "" {
		s.log.Warn("alert", "path", event.Path, "note", event.Note, "time", event.Time)
		return
	}
	if event.Matched != nil {
		s.log.Error("detection positive", "path", event.Path, "verdict", event.Verdict.String(),
			"signature", event.Matched.Name, "distance", event.Matched.Distance,
			"quarantine_id", event.QuarantineID, "time", event.Time)
		return
	}
	s.log.Error("detection positive", "path", event.Path, "verdict", event.Verdict.String(),
		"quarantine_id", event.QuarantineID, "time", event.Time)
}

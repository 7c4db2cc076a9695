package logging

import (
	"errors"
	"fmt"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level represents a logging severity, ordered from least to most verbose.
// It mirrors spec's logger[].level enum, which is wider than
// charmbracelet/log's four levels (it adds off and trace).
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a config string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// enabled reports whether a message at msgLevel should reach a sink
// configured at sinkLevel.
func enabled(sinkLevel, msgLevel Level) bool {
	if sinkLevel == LevelOff {
		return false
	}
	return msgLevel <= sinkLevel
}

// toCharmLevel maps our level to the nearest charmbracelet/log level.
// Trace has no charm equivalent and is logged at Debug severity.
func (l Level) toCharmLevel() charmlog.Level {
	switch l {
	case LevelError:
		return charmlog.ErrorLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelInfo:
		return charmlog.InfoLevel
	case LevelDebug, LevelTrace:
		return charmlog.DebugLevel
	default:
		return charmlog.InfoLevel
	}
}

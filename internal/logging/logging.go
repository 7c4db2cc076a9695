// Package logging provides simbiotad's structured, multi-sink logging.
//
// A deployment's logger[] configuration array (spec §6) becomes a set of
// independently leveled sinks: console, file, and syslog. Every component
// logger fans a message out to whichever sinks are configured and whose
// level admits it. Before Init is called, Get returns a silent logger, the
// same contract the teacher's logging package uses.
package logging

import (
	"fmt"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// SinkConfig configures one entry of the logger[] array.
type SinkConfig struct {
	Output string // "console", "file", or "syslog"
	Level  string // off, error, warn, info, debug, trace

	// console
	Target string // "stdout" or "stderr"

	// file
	Path string

	// syslog
	Format string // "3164" or "5424"
}

// Config configures the logging system: the full logger[] array plus the
// tag syslog sinks identify themselves with.
type Config struct {
	Sinks     []SinkConfig
	SyslogTag string // defaults to "simbiota"
}

type activeSink interface {
	Log(component string, level Level, msg string, kv []any)
	Close() error
}

// charmSink adapts a charmbracelet/log.Logger (writing to a fixed
// destination: stdout, stderr, or a file) into an activeSink.
type charmSink struct {
	level  Level
	logger *charmlog.Logger
	closer func() error
}

func (c *charmSink) Log(component string, level Level, msg string, kv []any) {
	if !enabled(c.level, level) {
		return
	}
	l := c.logger.With("component", component)
	switch level {
	case LevelError:
		l.Error(msg, kv...)
	case LevelWarn:
		l.Warn(msg, kv...)
	case LevelInfo:
		l.Info(msg, kv...)
	case LevelDebug, LevelTrace:
		l.Debug(msg, kv...)
	}
}

func (c *charmSink) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// syslogAdaptedSink adapts *syslogSink (which has no structured-kv concept)
// into an activeSink by flattening key/value pairs into the message text.
type syslogAdaptedSink struct {
	sink *syslogSink
}

func (s *syslogAdaptedSink) Log(component string, level Level, msg string, kv []any) {
	full := fmt.Sprintf("[%s] %s", component, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		full += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	s.sink.log(level, full)
}

func (s *syslogAdaptedSink) Close() error {
	return s.sink.Close()
}

// Logger is a component-scoped handle onto the global sink set.
type Logger struct {
	component string
}

func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Trace(msg string, kv ...any) { l.log(LevelTrace, msg, kv) }

func (l *Logger) log(level Level, msg string, kv []any) {
	state.mu.RLock()
	defer state.mu.RUnlock()
	for _, sink := range state.sinks {
		sink.Log(l.component, level, msg, kv)
	}
}

type globalState struct {
	mu          sync.RWMutex
	initialized bool
	sinks       []activeSink
	loggers     map[string]*Logger
}

var state = &globalState{loggers: make(map[string]*Logger)}

// Init replaces the active sink set. It should be called once at startup
// after configuration has been loaded, and again after a config reload.
func Init(cfg Config) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, s := range state.sinks {
		_ = s.Close()
	}
	state.sinks = nil

	tag := cfg.SyslogTag
	if tag == "" {
		tag = "simbiota"
	}

	for _, sc := range cfg.Sinks {
		level, err := ParseLevel(sc.Level)
		if err != nil {
			return fmt.Errorf("sink %s: %w", sc.Output, err)
		}

		switch sc.Output {
		case "console":
			dest := os.Stderr
			if sc.Target == "stdout" {
				dest = os.Stdout
			}
			logger := charmlog.NewWithOptions(dest, charmlog.Options{
				Level:           level.toCharmLevel(),
				ReportTimestamp: true,
				TimeFormat:      "15:04:05",
			})
			state.sinks = append(state.sinks, &charmSink{level: level, logger: logger})

		case "file":
			f, err := os.OpenFile(sc.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
			if err != nil {
				return fmt.Errorf("opening log file %s: %w", sc.Path, err)
			}
			logger := charmlog.NewWithOptions(f, charmlog.Options{
				Level:           level.toCharmLevel(),
				ReportTimestamp: true,
			})
			state.sinks = append(state.sinks, &charmSink{level: level, logger: logger, closer: f.Close})

		case "syslog":
			format, err := ParseSyslogFormat(sc.Format)
			if err != nil {
				return err
			}
			raw, err := newSyslogSink(level, format, tag)
			if err != nil {
				return fmt.Errorf("opening syslog sink: %w", err)
			}
			state.sinks = append(state.sinks, &syslogAdaptedSink{sink: raw})

		default:
			return fmt.Errorf("unknown logger output: %s", sc.Output)
		}
	}

	state.initialized = true
	return nil
}

// Get returns the logger for a component. Before Init is called, it is
// silent.
func Get(component string) *Logger {
	state.mu.RLock()
	if l, ok := state.loggers[component]; ok {
		state.mu.RUnlock()
		return l
	}
	state.mu.RUnlock()

	state.mu.Lock()
	defer state.mu.Unlock()
	if l, ok := state.loggers[component]; ok {
		return l
	}
	l := &Logger{component: component}
	state.loggers[component] = l
	return l
}

// Close closes every active sink. Call once at shutdown.
func Close() error {
	state.mu.Lock()
	defer state.mu.Unlock()

	var firstErr error
	for _, s := range state.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	state.sinks = nil
	state.initialized = false
	return firstErr
}

package logging

import (
	"fmt"
	"log/syslog"
	"net"
	"os"
	"time"
)

// SyslogFormat selects the wire framing used by the syslog sink.
type SyslogFormat int

const (
	// Syslog3164 is the traditional BSD syslog framing (RFC 3164).
	Syslog3164 SyslogFormat = iota
	// Syslog5424 is the structured syslog framing (RFC 5424).
	Syslog5424
)

// ParseSyslogFormat parses a config string ("3164" or "5424").
func ParseSyslogFormat(s string) (SyslogFormat, error) {
	switch s {
	case "", "3164":
		return Syslog3164, nil
	case "5424":
		return Syslog5424, nil
	default:
		return Syslog3164, fmt.Errorf("invalid syslog format: %s", s)
	}
}

// syslogSink writes log lines to the local syslog daemon.
type syslogSink struct {
	level  Level
	format SyslogFormat

	// Syslog3164 path: the standard library already knows how to frame
	// and prioritize BSD syslog messages.
	writer3164 *syslog.Writer

	// Syslog5424 path: log/syslog has no RFC 5424 framing, so this sink
	// dials the syslog socket directly and frames each message itself.
	conn5424 net.Conn
	hostname string
	tag      string
}

func newSyslogSink(level Level, format SyslogFormat, tag string) (*syslogSink, error) {
	s := &syslogSink{level: level, format: format, tag: tag}

	switch format {
	case Syslog3164:
		w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
		if err != nil {
			return nil, fmt.Errorf("opening syslog: %w", err)
		}
		s.writer3164 = w
	case Syslog5424:
		conn, err := net.Dial("unixgram", "/dev/log")
		if err != nil {
			conn, err = net.Dial("udp", "localhost:514")
			if err != nil {
				return nil, fmt.Errorf("opening syslog socket: %w", err)
			}
		}
		s.conn5424 = conn
		hostname, _ := os.Hostname()
		s.hostname = hostname
	}
	return s, nil
}

func (s *syslogSink) log(level Level, msg string) {
	if !enabled(s.level, level) {
		return
	}
	switch s.format {
	case Syslog3164:
		s.log3164(level, msg)
	case Syslog5424:
		s.log5424(level, msg)
	}
}

func (s *syslogSink) log3164(level Level, msg string) {
	if s.writer3164 == nil {
		return
	}
	switch level {
	case LevelError:
		_ = s.writer3164.Err(msg)
	case LevelWarn:
		_ = s.writer3164.Warning(msg)
	case LevelInfo:
		_ = s.writer3164.Info(msg)
	case LevelDebug, LevelTrace:
		_ = s.writer3164.Debug(msg)
	}
}

// severity maps our level onto an RFC 5424 numeric severity (RFC 5424 §6.2.1).
func (l Level) severity() int {
	switch l {
	case LevelError:
		return 3
	case LevelWarn:
		return 4
	case LevelInfo:
		return 6
	case LevelDebug, LevelTrace:
		return 7
	default:
		return 6
	}
}

func (s *syslogSink) log5424(level Level, msg string) {
	if s.conn5424 == nil {
		return
	}
	// RFC 5424 §6: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID [SD] MSG
	const facilityDaemon = 3
	pri := facilityDaemon*8 + level.severity()
	frame := fmt.Sprintf("<%d>1 %s %s %s %d - - %s",
		pri,
		time.Now().UTC().Format(time.RFC3339),
		s.hostname,
		s.tag,
		os.Getpid(),
		msg,
	)
	_, _ = s.conn5424.Write([]byte(frame))
}

func (s *syslogSink) Close() error {
	if s.writer3164 != nil {
		return s.writer3164.Close()
	}
	if s.conn5424 != nil {
		return s.conn5424.Close()
	}
	return nil
}

package logger

import (
	"log/syslog"
	"strings"
)

// SyslogWriteSyncer implements [zapcore.WriteSyncer] allowing Zap output to
// be redirected to syslog.
type SyslogWriteSyncer struct {
	writer *syslog.Writer
}

// NewSyslogWriteSyncer returns a SyslogWriteSyncer that uses the log/syslog
// package to send messages to syslog. The priority is only used when the
// actual priority cannot be parsed from the log message. The prefix tag
// indicates the source of the log entry, typically the name of the
// application.
func NewSyslogWriteSyncer(priority syslog.Priority, tag string) (*SyslogWriteSyncer, error) {
	writer, err := syslog.New(priority, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogWriteSyncer{
		writer: writer,
	}, nil
}

// Write parses zap log messages and writes them into the syslog message
// format, mapping the zap level to a syslog severity. The parsing assumes the
// console encoder's <TIMESTAMP>\t<LEVEL>\t<STRING> layout; anything else is
// passed through unchanged.
func (s *SyslogWriteSyncer) Write(p []byte) (n int, err error) {

	splitString := strings.Split(string(p), "\t")
	if len(splitString) < 3 {
		return s.writer.Write(p)
	}

	// Don't include the timestamp since syslog has its own timestamps.
	level := splitString[1]
	msg := strings.Join(splitString[2:], "")

	// Map the log levels defined by zapcore's level.go to the syslog
	// severity levels defined in RFC5424.
	switch level {
	case "debug":
		return len(p), s.writer.Debug(msg)
	case "info":
		return len(p), s.writer.Info(msg)
	case "warn":
		return len(p), s.writer.Warning(msg)
	case "error":
		return len(p), s.writer.Err(msg)
	case "dpanic", "panic", "fatal":
		return len(p), s.writer.Crit(msg)
	default:
		// Unknown level, better to log the original message unchanged.
		return s.writer.Write(p)
	}
}

// Sync is a no-op: the syslog package hands messages off immediately and
// provides no flush mechanism.
func (s *SyslogWriteSyncer) Sync() error {
	return nil
}

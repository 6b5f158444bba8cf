// Package logging provides a thin level filter over the standard
// library logger, gated by the LOG_LEVEL environment variable.
package logging

import (
	"log"
	"os"
	"strings"
)

// Level is a diagnostic verbosity level, ordered from most to least
// verbose.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
)

func parseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return Trace
	case "DEBUG":
		return Debug
	case "WARN":
		return Warn
	case "ERROR":
		return Error
	default:
		return Info
	}
}

// Logger wraps *log.Logger with a minimum level below which messages
// are dropped.
type Logger struct {
	min Level
	l   *log.Logger
}

// New builds a Logger reading its minimum level from LOG_LEVEL (default
// INFO), writing to stderr with the standard library's default flags.
func New() *Logger {
	return &Logger{
		min: parseLevel(os.Getenv("LOG_LEVEL")),
		l:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (lg *Logger) log(level Level, prefix, format string, args ...any) {
	if level < lg.min {
		return
	}
	lg.l.Printf(prefix+" "+format, args...)
}

func (lg *Logger) Tracef(format string, args ...any) { lg.log(Trace, "TRACE", format, args...) }
func (lg *Logger) Debugf(format string, args ...any) { lg.log(Debug, "DEBUG", format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.log(Info, "INFO", format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.log(Warn, "WARN", format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.log(Error, "ERROR", format, args...) }

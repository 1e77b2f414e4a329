// Package logging provides the leveled logger used by the formflow tooling.
// It wraps the standard log package; levels below the configured minimum are
// dropped.
package logging

import (
	"io"
	"log"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	minLevel Level
	out      *log.Logger
}

func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{
		minLevel: minLevel,
		out:      log.New(w, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if l == nil || level < l.minLevel {
		return
	}
	l.out.Printf("["+levelNames[level]+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// Package logging provides structured logging for the probe
// scheduler. JSON and console loggers can be combined with MultiLogger.
package logging

import (
	"fmt"
	"strings"
)

// Logger is implemented by every sink in this package. Components
// receive one through a WithLogger option and default to NullLogger.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)

	// WithFields returns a child that adds fields to every entry.
	WithFields(fields ...Field) Logger

	// LogProbe records one iperf3 invocation.
	LogProbe(entry ProbeLog)

	Close() error
}

// Field is one key/value pair of a structured entry.
type Field struct {
	Key   string
	Value any
}

// ProbeLog captures one probe subprocess invocation.
type ProbeLog struct {
	Timestamp     string `json:"timestamp"`
	ScenarioID    string `json:"scenario_id"`
	Target        string `json:"target"`
	Direction     string `json:"direction"`
	Command       string `json:"command"`
	ExitCode      int    `json:"exit_code"`
	Status        string `json:"status"`
	DurationMs    int64  `json:"duration_ms"`
	StderrPreview string `json:"stderr_preview,omitempty"`
}

// LogLevel orders severities from LevelDebug up to LevelError.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a configured level name such as "info" or
// "WARNING" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

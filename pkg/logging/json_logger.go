package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// jsonMarshal is replaced in tests to simulate encoding failures.
var jsonMarshal = json.Marshal

// LogEntry is one line of the event log.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LoggerConfig configures a JSONLogger.
type LoggerConfig struct {
	// OutputPath is the event log. Empty means stdout.
	OutputPath string

	// ProbeLogPath receives one line per probe invocation. Empty
	// disables probe logging.
	ProbeLogPath string

	Level   LogLevel
	Verbose bool
	Fields  map[string]any
}

// jsonSink owns the files. Loggers derived with WithFields share it,
// so closing any of them silences all.
type jsonSink struct {
	mu     sync.Mutex
	events io.Writer
	probes io.Writer
	owned  []io.Closer
	closed bool
}

func (s *jsonSink) writeLine(w io.Writer, v any) {
	if w == nil {
		return
	}
	data, err := jsonMarshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_, _ = w.Write(append(data, '\n'))
}

func (s *jsonSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, c := range s.owned {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// JSONLogger writes JSON Lines: events to one file and probe
// invocations to another.
type JSONLogger struct {
	sink    *jsonSink
	level   LogLevel
	verbose bool
	fields  map[string]any
}

// NewJSONLogger opens the configured files, creating parent
// directories as needed.
func NewJSONLogger(config LoggerConfig) (*JSONLogger, error) {
	sink := &jsonSink{events: os.Stdout}

	if config.OutputPath != "" {
		f, err := openAppend(config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink.events = f
		sink.owned = append(sink.owned, f)
	}
	if config.ProbeLogPath != "" {
		f, err := openAppend(config.ProbeLogPath)
		if err != nil {
			_ = sink.close()
			return nil, fmt.Errorf("failed to open probe log: %w", err)
		}
		sink.probes = f
		sink.owned = append(sink.owned, f)
	}

	return &JSONLogger{
		sink:    sink,
		level:   config.Level,
		verbose: config.Verbose,
		fields:  mergeFields(config.Fields, nil),
	}, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// mergeFields copies base and overlays extra onto the copy.
func mergeFields(base map[string]any, extra []Field) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for _, f := range extra {
		out[f.Key] = f.Value
	}
	return out
}

func (l *JSONLogger) emit(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Fields:    mergeFields(l.fields, fields),
	}
	l.sink.writeLine(l.sink.events, entry)
}

// Info logs an informational message.
func (l *JSONLogger) Info(msg string, fields ...Field) {
	l.emit(LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *JSONLogger) Warn(msg string, fields ...Field) {
	l.emit(LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *JSONLogger) Error(msg string, fields ...Field) {
	l.emit(LevelError, msg, fields)
}

// Debug is dropped unless the logger was built with Verbose.
func (l *JSONLogger) Debug(msg string, fields ...Field) {
	if l.verbose {
		l.emit(LevelDebug, msg, fields)
	}
}

// WithFields returns a child sharing this logger's files.
func (l *JSONLogger) WithFields(fields ...Field) Logger {
	return &JSONLogger{
		sink:    l.sink,
		level:   l.level,
		verbose: l.verbose,
		fields:  mergeFields(l.fields, fields),
	}
}

// LogProbe appends entry to the probe log, if one is configured.
func (l *JSONLogger) LogProbe(entry ProbeLog) {
	l.sink.writeLine(l.sink.probes, entry)
}

// Close closes the files. It is safe to call more than once.
func (l *JSONLogger) Close() error {
	return l.sink.close()
}

// SetupLogging creates the daemon's JSON logger in logsDir:
// netprobe.log for events and probes.log for probe invocations.
func SetupLogging(logsDir string, level LogLevel) (*JSONLogger, error) {
	return NewJSONLogger(LoggerConfig{
		OutputPath:   filepath.Join(logsDir, "netprobe.log"),
		ProbeLogPath: filepath.Join(logsDir, "probes.log"),
		Level:        level,
		Verbose:      level == LevelDebug,
	})
}

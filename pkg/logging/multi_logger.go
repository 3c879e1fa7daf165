package logging

import "errors"

// MultiLogger sends every call to a set of loggers, in order. The
// daemon uses it to write the JSON log file and the console at the
// same time.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers. Nil entries are dropped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

// Info logs to all loggers.
func (m *MultiLogger) Info(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Info(msg, fields...) })
}

// Warn logs to all loggers.
func (m *MultiLogger) Warn(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Warn(msg, fields...) })
}

// Error logs to all loggers.
func (m *MultiLogger) Error(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Error(msg, fields...) })
}

// Debug logs to all loggers.
func (m *MultiLogger) Debug(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Debug(msg, fields...) })
}

// WithFields derives a child from every inner logger.
func (m *MultiLogger) WithFields(fields ...Field) Logger {
	children := make([]Logger, 0, len(m.loggers))
	m.each(func(l Logger) {
		children = append(children, l.WithFields(fields...))
	})
	return &MultiLogger{loggers: children}
}

// LogProbe forwards entry to all loggers.
func (m *MultiLogger) LogProbe(entry ProbeLog) {
	m.each(func(l Logger) { l.LogProbe(entry) })
}

// Close closes every inner logger even if some fail, and joins
// their errors.
func (m *MultiLogger) Close() error {
	var errs []error
	m.each(func(l Logger) {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

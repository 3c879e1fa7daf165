package logging

// NullLogger drops everything. Components start with it so that a
// logger is optional in their constructors.
type NullLogger struct{}

var _ Logger = NullLogger{}

// Info is a no-op.
func (NullLogger) Info(string, ...Field) {}

// Warn is a no-op.
func (NullLogger) Warn(string, ...Field) {}

// Error is a no-op.
func (NullLogger) Error(string, ...Field) {}

// Debug is a no-op.
func (NullLogger) Debug(string, ...Field) {}

// LogProbe is a no-op.
func (NullLogger) LogProbe(ProbeLog) {}

// WithFields returns the receiver; there is nothing to attach to.
func (n NullLogger) WithFields(...Field) Logger { return n }

// Close is a no-op.
func (NullLogger) Close() error { return nil }

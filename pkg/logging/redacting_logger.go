package logging

import "strings"

// RedactingLogger masks secrets, such as the database password, in
// messages, string field values and probe entries before passing
// them to the wrapped logger.
type RedactingLogger struct {
	inner    Logger
	replacer *strings.Replacer
}

// NewRedactingLogger wraps inner. Empty secrets are ignored. A
// secret longer than four characters keeps its first two
// characters; shorter ones are masked completely.
func NewRedactingLogger(inner Logger, secrets ...string) *RedactingLogger {
	var pairs []string
	for _, s := range secrets {
		if s != "" {
			pairs = append(pairs, s, mask(s))
		}
	}
	return &RedactingLogger{
		inner:    inner,
		replacer: strings.NewReplacer(pairs...),
	}
}

func mask(s string) string {
	keep := 0
	if len(s) > 4 {
		keep = 2
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep)
}

func (r *RedactingLogger) scrub(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if s, ok := f.Value.(string); ok {
			f.Value = r.replacer.Replace(s)
		}
		out[i] = f
	}
	return out
}

// Info logs a redacted informational message.
func (r *RedactingLogger) Info(msg string, fields ...Field) {
	r.inner.Info(r.replacer.Replace(msg), r.scrub(fields)...)
}

// Warn logs a redacted warning message.
func (r *RedactingLogger) Warn(msg string, fields ...Field) {
	r.inner.Warn(r.replacer.Replace(msg), r.scrub(fields)...)
}

// Error logs a redacted error message.
func (r *RedactingLogger) Error(msg string, fields ...Field) {
	r.inner.Error(r.replacer.Replace(msg), r.scrub(fields)...)
}

// Debug logs a redacted debug message.
func (r *RedactingLogger) Debug(msg string, fields ...Field) {
	r.inner.Debug(r.replacer.Replace(msg), r.scrub(fields)...)
}

// WithFields scrubs the fields once and keeps redacting in the child.
func (r *RedactingLogger) WithFields(fields ...Field) Logger {
	return &RedactingLogger{
		inner:    r.inner.WithFields(r.scrub(fields)...),
		replacer: r.replacer,
	}
}

// LogProbe masks the command line and the stderr preview.
func (r *RedactingLogger) LogProbe(entry ProbeLog) {
	entry.Command = r.replacer.Replace(entry.Command)
	entry.StderrPreview = r.replacer.Replace(entry.StderrPreview)
	r.inner.LogProbe(entry)
}

// Close closes the wrapped logger.
func (r *RedactingLogger) Close() error {
	return r.inner.Close()
}

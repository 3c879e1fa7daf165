package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	levelColors = map[LogLevel]*color.Color{
		LevelDebug: color.New(color.FgHiBlack),
		LevelInfo:  color.New(color.FgBlue),
		LevelWarn:  color.New(color.FgYellow),
		LevelError: color.New(color.FgRed),
	}
	dim = color.New(color.FgHiBlack)
)

// ConsoleLogger prints one colored line per message. Colors are
// dropped automatically when the output is not a terminal.
type ConsoleLogger struct {
	mu     *sync.Mutex
	output io.Writer
	level  LogLevel
	fields map[string]any
}

// NewConsoleLogger creates a console logger on stdout. Debug lines
// are printed only when verbose is set.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return &ConsoleLogger{
		mu:     &sync.Mutex{},
		output: os.Stdout,
		level:  level,
		fields: map[string]any{},
	}
}

// SetOutput redirects console output.
func (c *ConsoleLogger) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = w
}

// SetLevel sets the minimum level printed.
func (c *ConsoleLogger) SetLevel(level LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
}

// formatFields renders fields as "{a=1, b=x}" in key order.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return "{" + b.String() + "}"
}

func (c *ConsoleLogger) log(level LogLevel, msg string, fields ...Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < c.level {
		return
	}

	line := dim.Sprint(time.Now().Format("15:04:05")) + " [" +
		levelColors[level].Sprintf("%-5s", level.String()) + "] " + msg
	if all := mergeFields(c.fields, fields); len(all) > 0 {
		line += " " + dim.Sprint(formatFields(all))
	}
	fmt.Fprintln(c.output, line)
}

// Info logs an informational message.
func (c *ConsoleLogger) Info(msg string, fields ...Field) {
	c.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (c *ConsoleLogger) Warn(msg string, fields ...Field) {
	c.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (c *ConsoleLogger) Error(msg string, fields ...Field) {
	c.log(LevelError, msg, fields...)
}

// Debug is printed only at LevelDebug.
func (c *ConsoleLogger) Debug(msg string, fields ...Field) {
	c.log(LevelDebug, msg, fields...)
}

// WithFields returns a logger sharing this one's output and lock.
func (c *ConsoleLogger) WithFields(fields ...Field) Logger {
	return &ConsoleLogger{
		mu:     c.mu,
		output: c.output,
		level:  c.level,
		fields: mergeFields(c.fields, fields),
	}
}

// LogProbe prints a one-line probe summary at debug level, or at
// warn level when the probe did not succeed.
func (c *ConsoleLogger) LogProbe(entry ProbeLog) {
	fields := []Field{
		StringField("scenario_id", entry.ScenarioID),
		StringField("target", entry.Target),
		StringField("direction", entry.Direction),
		StringField("status", entry.Status),
		LogField("duration_ms", entry.DurationMs),
	}
	if entry.Status != "success" {
		c.Warn("probe finished", fields...)
		return
	}
	c.Debug("probe finished", fields...)
}

// Close does nothing; stdout is not owned by the logger.
func (c *ConsoleLogger) Close() error {
	return nil
}

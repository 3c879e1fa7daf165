package logging

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func newTestConsole(verbose bool) (*ConsoleLogger, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := NewConsoleLogger(verbose)
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestConsoleLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*ConsoleLogger)
		level string
	}{
		{"info", func(c *ConsoleLogger) { c.Info("hello") }, "[INFO ]"},
		{"warn", func(c *ConsoleLogger) { c.Warn("hello") }, "[WARN ]"},
		{"error", func(c *ConsoleLogger) { c.Error("hello") }, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestConsole(false)
			tt.log(logger)
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestConsoleLogger_Debug(t *testing.T) {
	logger, buf := newTestConsole(false)
	logger.Debug("quiet")
	assert.Empty(t, buf.String())

	logger, buf = newTestConsole(true)
	logger.Debug("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestConsoleLogger_SetLevel(t *testing.T) {
	logger, buf := newTestConsole(false)
	logger.SetLevel(LevelError)
	logger.Warn("dropped")
	assert.Empty(t, buf.String())
	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestConsoleLogger_FieldsSorted(t *testing.T) {
	logger, buf := newTestConsole(false)
	child := logger.WithFields(StringField("scenario_id", "s1"))
	child.Info("run", IntField("iteration", 2), StringField("a", "x"))
	assert.Contains(t, buf.String(), "{a=x, iteration=2, scenario_id=s1}")
}

func TestConsoleLogger_LogProbe(t *testing.T) {
	logger, buf := newTestConsole(false)
	logger.LogProbe(ProbeLog{
		ScenarioID: "s1", Target: "h:5201", Status: "success",
	})
	assert.Empty(t, buf.String())

	logger.LogProbe(ProbeLog{
		ScenarioID: "s1", Target: "h:5201", Status: "timeout",
	})
	assert.Contains(t, buf.String(), "[WARN ]")
	assert.Contains(t, buf.String(), "status=timeout")
}

func TestConsoleLogger_Close(t *testing.T) {
	logger, _ := newTestConsole(false)
	assert.NoError(t, logger.Close())
}

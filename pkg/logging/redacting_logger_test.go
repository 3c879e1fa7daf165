package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRedactingLogger_RedactsMessageAndFields(t *testing.T) {
	inner := &mockLogger{}
	inner.On("Info", "dsn postgres://u:hu**********@db", []Field{
		StringField("password", "hu**********"),
		IntField("port", 5432),
	}).Return()

	logger := NewRedactingLogger(inner, "hunter2-long")
	logger.Info(
		"dsn postgres://u:hunter2-long@db",
		StringField("password", "hunter2-long"),
		IntField("port", 5432),
	)
	inner.AssertExpectations(t)
}

func TestRedactingLogger_AllLevels(t *testing.T) {
	inner := &mockLogger{}
	inner.On("Warn", "**** w", []Field{}).Return()
	inner.On("Error", "**** e", []Field{}).Return()
	inner.On("Debug", "**** d", []Field{}).Return()

	logger := NewRedactingLogger(inner, "pass", "")
	logger.Warn("pass w")
	logger.Error("pass e")
	logger.Debug("pass d")
	inner.AssertExpectations(t)
}

func TestRedactingLogger_WithFieldsKeepsSecrets(t *testing.T) {
	child := &mockLogger{}
	child.On("Info", "se****", []Field{}).Return()

	inner := &mockLogger{}
	inner.On("WithFields", []Field{StringField("k", "se****")}).
		Return(child)

	logger := NewRedactingLogger(inner, "secret")
	logger.WithFields(StringField("k", "secret")).Info("secret")
	inner.AssertExpectations(t)
	child.AssertExpectations(t)
}

func TestRedactingLogger_LogProbe(t *testing.T) {
	inner := &mockLogger{}
	inner.On("LogProbe", mock.MatchedBy(func(e ProbeLog) bool {
		return e.Command == "iperf3 --password to*****" &&
			e.StderrPreview == "bad to*****" &&
			e.ScenarioID == "s1"
	})).Return()

	logger := NewRedactingLogger(inner, "tokenxy")
	logger.LogProbe(ProbeLog{
		ScenarioID:    "s1",
		Command:       "iperf3 --password tokenxy",
		StderrPreview: "bad tokenxy",
	})
	inner.AssertExpectations(t)
}

func TestRedactingLogger_Close(t *testing.T) {
	inner := &mockLogger{}
	inner.On("Close").Return(nil)
	assert.NoError(t, NewRedactingLogger(inner).Close())
	inner.AssertExpectations(t)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "ab***", mask("abcde"))
}

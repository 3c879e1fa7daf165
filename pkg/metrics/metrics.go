// Package metrics records probe, evaluation and persistence
// counters for the scheduler.
package metrics

import "time"

// ProbeMetrics defines the interface for recording scheduler
// metrics.
type ProbeMetrics interface {
	// RecordProbe records one probe invocation.
	RecordProbe(
		scenarioID, direction, status string,
		duration time.Duration, mbps float64,
	)
	// RecordRun records a finished iteration.
	RecordRun(scenarioID string, partial bool, duration time.Duration)
	// RecordEvaluation records a judged expectation.
	RecordEvaluation(scenarioID, metric, scope string, passed bool)
	// RecordInsufficientData records an expectation skipped for
	// lack of samples.
	RecordInsufficientData(scenarioID, metric, scope string)
	// RecordPersistenceFailure records a sink write failure.
	RecordPersistenceFailure(sink string)
	// SetActiveRuns sets the gauge of in-flight runs.
	SetActiveRuns(count int)
}

// NoopMetrics is a no-op implementation of ProbeMetrics useful
// for testing or when metrics collection is disabled.
type NoopMetrics struct{}

// RecordProbe is a no-op.
func (NoopMetrics) RecordProbe(_, _, _ string, _ time.Duration, _ float64) {}

// RecordRun is a no-op.
func (NoopMetrics) RecordRun(_ string, _ bool, _ time.Duration) {}

// RecordEvaluation is a no-op.
func (NoopMetrics) RecordEvaluation(_, _, _ string, _ bool) {}

// RecordInsufficientData is a no-op.
func (NoopMetrics) RecordInsufficientData(_, _, _ string) {}

// RecordPersistenceFailure is a no-op.
func (NoopMetrics) RecordPersistenceFailure(_ string) {}

// SetActiveRuns is a no-op.
func (NoopMetrics) SetActiveRuns(_ int) {}

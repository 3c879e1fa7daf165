package scenario

import "fmt"

// ConfigurationError reports a malformed scenario detected at load
// or registration time. Only the offending scenario is excluded.
type ConfigurationError struct {
	ScenarioID string
	Index      int // -1 if not applicable
	Field      string
	Message    string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	loc := e.Field
	if e.Index >= 0 {
		loc = fmt.Sprintf("scenarios[%d].%s", e.Index, e.Field)
	}
	if e.ScenarioID != "" {
		return fmt.Sprintf(
			"scenario %s: %s: %s", e.ScenarioID, loc, e.Message,
		)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// ProbeError is a classified probe failure. Status is one of
// StatusFailed, StatusTimeout, StatusParseError or StatusError.
type ProbeError struct {
	Status    string
	Target    Target
	Direction Direction
	Err       error
}

// Error implements error.
func (e *ProbeError) Error() string {
	return fmt.Sprintf(
		"probe %s %s: %s: %v",
		e.Direction, e.Target, e.Status, e.Err,
	)
}

// Unwrap returns the underlying cause.
func (e *ProbeError) Unwrap() error { return e.Err }

// InsufficientDataError marks an aggregated expectation that had no
// successful samples to judge. No record is produced for it.
type InsufficientDataError struct {
	ScenarioID  string `json:"scenario_id"`
	Metric      Metric `json:"metric"`
	Scope       Scope  `json:"evaluation_scope"`
	Aggregation string `json:"aggregation"`
}

// Error implements error.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf(
		"insufficient data: scenario %s %s %s(%s): no successful samples",
		e.ScenarioID, e.Scope, e.Aggregation, e.Metric,
	)
}

// PersistenceError wraps a sink failure. It is logged and never
// aborts a run.
type PersistenceError struct {
	Sink string
	Err  error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Sink, e.Err)
}

// Unwrap returns the sink error.
func (e *PersistenceError) Unwrap() error { return e.Err }

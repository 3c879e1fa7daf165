package scenario

import "time"

// ScenarioStatus is one row of a scheduler status report.
type ScenarioStatus struct {
	ScenarioID string    `json:"scenario_id"`
	Name       string    `json:"name,omitempty"`
	Mode       string    `json:"mode"`
	State      string    `json:"state"`
	Iteration  int       `json:"iteration"`
	Runs       int       `json:"runs"`
	MaxRuns    int       `json:"max_runs,omitempty"`
	NextDue    time.Time `json:"next_due,omitempty"`
	LastRun    time.Time `json:"last_run,omitempty"`
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Running   bool             `json:"running"`
	Total     int              `json:"total"`
	Active    int              `json:"active"`
	Exhausted int              `json:"exhausted"`
	Timestamp time.Time        `json:"timestamp"`
	Scenarios []ScenarioStatus `json:"scenarios"`
}

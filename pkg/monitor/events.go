// Package monitor collects scheduler events and serves them, with
// the scheduler status, over HTTP and WebSocket.
package monitor

import "time"

// EventType represents the type of scheduler event.
type EventType string

const (
	EventRegistered      EventType = "scenario_registered"
	EventRunStarted      EventType = "run_started"
	EventTargetCompleted EventType = "target_completed"
	EventRunCompleted    EventType = "run_completed"
	EventRunPartial      EventType = "run_partial"
	EventVerdict         EventType = "verdict"
	EventInsufficient    EventType = "insufficient_data"
	EventPersistFailed   EventType = "persistence_failed"
	EventExhausted       EventType = "scenario_exhausted"
)

// Event is one scheduler lifecycle event.
type Event struct {
	Type       EventType     `json:"type"`
	ScenarioID string        `json:"scenario_id"`
	Iteration  int           `json:"iteration,omitempty"`
	RunID      string        `json:"run_id,omitempty"`
	Target     string        `json:"target,omitempty"`
	Direction  string        `json:"direction,omitempty"`
	Status     string        `json:"status,omitempty"`
	Metric     string        `json:"metric,omitempty"`
	Scope      string        `json:"scope,omitempty"`
	Verdict    string        `json:"verdict,omitempty"`
	Mbps       float64       `json:"mbps,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Emitter receives events. *EventCollector implements it.
type Emitter interface {
	Emit(event Event)
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit is a no-op.
func (NopEmitter) Emit(Event) {}

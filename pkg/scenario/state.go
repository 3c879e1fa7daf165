package scenario

import (
	"sync"
	"time"
)

// State labels for a scenario's position in its run cycle.
const (
	StateIdle      = "idle"
	StateDue       = "due"
	StateRunning   = "running"
	StateExhausted = "exhausted"
)

// RunState is the mutable working state of one scenario. The
// scheduler owns it; only the scenario's single active run writes
// its history and counters. The mutex makes status snapshots safe
// while a run is in flight.
type RunState struct {
	mu        sync.RWMutex
	id        string
	iteration int
	runs      int
	nextDue   time.Time
	lastRun   time.Time
	history   []RunResult
	running   bool
	exhausted bool
}

// NewRunState creates an idle state with no history.
func NewRunState(id string) *RunState {
	return &RunState{id: id}
}

// ID returns the scenario ID.
func (s *RunState) ID() string { return s.id }

// TryStart marks the state running. It returns false if a run is
// already in flight or the schedule is exhausted.
func (s *RunState) TryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.exhausted {
		return false
	}
	s.running = true
	return true
}

// Finish clears the running flag.
func (s *RunState) Finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// NextIteration returns the number the next iteration will carry.
func (s *RunState) NextIteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration + 1
}

// History returns a copy of the accumulated successful results.
func (s *RunState) History() []RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunResult, len(s.history))
	copy(out, s.history)
	return out
}

// Complete records a finished iteration: the counter advances to
// iteration, successful results extend the history and the run
// count and last-run time are updated.
func (s *RunState) Complete(
	iteration int,
	results []RunResult,
	at time.Time,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iteration > s.iteration {
		s.iteration = iteration
	}
	for _, r := range results {
		if r.Succeeded() {
			s.history = append(s.history, r)
		}
	}
	s.runs++
	s.lastRun = at
}

// Attempt counts a trigger that failed before the iteration could
// complete. The run count and last-run time advance so the schedule
// moves on; the iteration counter and history are left alone.
func (s *RunState) Attempt(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRun = at
}

// Schedule stores the next due time. ok=false marks the state
// exhausted.
func (s *RunState) Schedule(next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.exhausted = true
		s.nextDue = time.Time{}
		return
	}
	s.nextDue = next
}

// Restore seeds the state from an external store.
func (s *RunState) Restore(
	iteration, runs int,
	lastRun time.Time,
	history []RunResult,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration = iteration
	s.runs = runs
	s.lastRun = lastRun
	s.history = append([]RunResult(nil), history...)
}

// Snapshot is a point-in-time copy of a RunState.
type Snapshot struct {
	ScenarioID  string    `json:"scenario_id"`
	Iteration   int       `json:"iteration"`
	Runs        int       `json:"runs"`
	NextDue     time.Time `json:"next_due,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
	HistorySize int       `json:"history_size"`
	Running     bool      `json:"running"`
	Exhausted   bool      `json:"exhausted"`
}

// Snapshot copies the state without its history.
func (s *RunState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ScenarioID:  s.id,
		Iteration:   s.iteration,
		Runs:        s.runs,
		NextDue:     s.nextDue,
		LastRun:     s.lastRun,
		HistorySize: len(s.history),
		Running:     s.running,
		Exhausted:   s.exhausted,
	}
}

// Label derives the cycle state at the given instant.
func (s Snapshot) Label(now time.Time) string {
	switch {
	case s.Exhausted:
		return StateExhausted
	case s.Running:
		return StateRunning
	case !s.NextDue.IsZero() && !now.Before(s.NextDue):
		return StateDue
	default:
		return StateIdle
	}
}

package monitor

import (
	"sync"
	"time"
)

// DashboardData is a live per-scenario view built from events.
type DashboardData struct {
	mu        sync.RWMutex
	StartTime time.Time                `json:"start_time"`
	Scenarios map[string]ScenarioState `json:"scenarios"`
	Summary   DashboardSummary         `json:"summary"`
}

// ScenarioState is the dashboard row for one scenario.
type ScenarioState struct {
	ScenarioID    string             `json:"scenario_id"`
	Status        string             `json:"status"`
	Iteration     int                `json:"iteration"`
	RunID         string             `json:"run_id,omitempty"`
	LastRun       *time.Time         `json:"last_run,omitempty"`
	LastDuration  string             `json:"last_duration,omitempty"`
	Passed        int                `json:"passed"`
	Failed        int                `json:"failed"`
	ProbeFailures int                `json:"probe_failures"`
	Throughput    map[string]float64 `json:"throughput,omitempty"`
	Message       string             `json:"message,omitempty"`
}

// DashboardSummary holds aggregate stats for the dashboard.
type DashboardSummary struct {
	Total    int     `json:"total"`
	Running  int     `json:"running"`
	Idle     int     `json:"idle"`
	Done     int     `json:"done"`
	PassRate float64 `json:"pass_rate"`
	Elapsed  string  `json:"elapsed"`
}

// NewDashboardData creates an empty dashboard.
func NewDashboardData() *DashboardData {
	return &DashboardData{
		StartTime: time.Now(),
		Scenarios: make(map[string]ScenarioState),
	}
}

// UpdateFromEvent updates dashboard state from an event.
func (d *DashboardData) UpdateFromEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, exists := d.Scenarios[event.ScenarioID]
	if !exists {
		state = ScenarioState{
			ScenarioID: event.ScenarioID,
			Status:     "idle",
		}
	}

	switch event.Type {
	case EventRunStarted:
		state.Status = "running"
		state.Iteration = event.Iteration
		state.RunID = event.RunID
		state.Message = ""
	case EventTargetCompleted:
		if event.Status == "success" {
			if state.Throughput == nil {
				state.Throughput = make(map[string]float64)
			}
			state.Throughput[event.Target+"/"+event.Direction] = event.Mbps
		} else {
			state.ProbeFailures++
			state.Message = event.Message
		}
	case EventRunCompleted, EventRunPartial:
		state.Status = "idle"
		ts := event.Timestamp
		state.LastRun = &ts
		state.LastDuration = event.Duration.Round(time.Millisecond).String()
	case EventVerdict:
		if event.Verdict == "PASS" {
			state.Passed++
		} else {
			state.Failed++
		}
	case EventInsufficient, EventPersistFailed:
		state.Message = event.Message
	case EventExhausted:
		state.Status = "done"
	}

	d.Scenarios[event.ScenarioID] = state
	d.recalcSummary()
}

func (d *DashboardData) recalcSummary() {
	s := DashboardSummary{}
	passed, judged := 0, 0
	for _, sc := range d.Scenarios {
		s.Total++
		switch sc.Status {
		case "running":
			s.Running++
		case "done":
			s.Done++
		default:
			s.Idle++
		}
		passed += sc.Passed
		judged += sc.Passed + sc.Failed
	}
	if judged > 0 {
		s.PassRate = float64(passed) / float64(judged) * 100
	}
	s.Elapsed = time.Since(d.StartTime).Round(time.Millisecond).String()
	d.Summary = s
}

// Snapshot returns a copy of the current dashboard state.
func (d *DashboardData) Snapshot() *DashboardData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := &DashboardData{
		StartTime: d.StartTime,
		Summary:   d.Summary,
		Scenarios: make(map[string]ScenarioState, len(d.Scenarios)),
	}
	for k, v := range d.Scenarios {
		if v.Throughput != nil {
			tp := make(map[string]float64, len(v.Throughput))
			for tk, tv := range v.Throughput {
				tp[tk] = tv
			}
			v.Throughput = tp
		}
		snap.Scenarios[k] = v
	}
	return snap
}

// BuildDashboardData creates a DashboardData by replaying all
// collected events.
func BuildDashboardData(collector *EventCollector) *DashboardData {
	data := NewDashboardData()
	for _, event := range collector.Events() {
		data.UpdateFromEvent(event)
	}
	return data
}

package metrics

import (
	"sync"
	"time"
)

// MemoryMetrics implements ProbeMetrics with in-memory counters.
// It backs tests and the status dashboard when no Prometheus
// registry is wanted.
type MemoryMetrics struct {
	mu            sync.Mutex
	probes        map[string]int
	throughput    map[string][]float64
	runs          map[string]int
	partialRuns   map[string]int
	durations     map[string][]time.Duration
	evaluations   map[string]int
	insufficient  map[string]int
	persistFailed map[string]int
	active        int
}

// NewMemoryMetrics creates a new MemoryMetrics instance.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		probes:        make(map[string]int),
		throughput:    make(map[string][]float64),
		runs:          make(map[string]int),
		partialRuns:   make(map[string]int),
		durations:     make(map[string][]time.Duration),
		evaluations:   make(map[string]int),
		insufficient:  make(map[string]int),
		persistFailed: make(map[string]int),
	}
}

// RecordProbe counts a probe by scenario and status.
func (m *MemoryMetrics) RecordProbe(
	scenarioID, direction, status string,
	_ time.Duration, mbps float64,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[scenarioID+":"+direction+":"+status]++
	if status == "success" {
		key := scenarioID + ":" + direction
		m.throughput[key] = append(m.throughput[key], mbps)
	}
}

// RecordRun counts a finished iteration.
func (m *MemoryMetrics) RecordRun(
	scenarioID string, partial bool, duration time.Duration,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[scenarioID]++
	if partial {
		m.partialRuns[scenarioID]++
	}
	m.durations[scenarioID] = append(m.durations[scenarioID], duration)
}

// RecordEvaluation counts a verdict.
func (m *MemoryMetrics) RecordEvaluation(
	scenarioID, metric, scope string, passed bool,
) {
	verdict := "failed"
	if passed {
		verdict = "passed"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[scenarioID+":"+metric+":"+scope+":"+verdict]++
}

// RecordInsufficientData counts a skipped expectation.
func (m *MemoryMetrics) RecordInsufficientData(
	scenarioID, metric, scope string,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insufficient[scenarioID+":"+metric+":"+scope]++
}

// RecordPersistenceFailure counts a failed sink write.
func (m *MemoryMetrics) RecordPersistenceFailure(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistFailed[sink]++
}

// SetActiveRuns stores the number of runs in flight.
func (m *MemoryMetrics) SetActiveRuns(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

// ProbeCount returns the count for a scenario+direction+status
// combination.
func (m *MemoryMetrics) ProbeCount(scenarioID, direction, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes[scenarioID+":"+direction+":"+status]
}

// Throughput returns the recorded successful Mbps values.
func (m *MemoryMetrics) Throughput(scenarioID, direction string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.throughput[scenarioID+":"+direction]))
	copy(out, m.throughput[scenarioID+":"+direction])
	return out
}

// RunCount returns the number of finished iterations.
func (m *MemoryMetrics) RunCount(scenarioID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[scenarioID]
}

// PartialRunCount returns the number of drained iterations.
func (m *MemoryMetrics) PartialRunCount(scenarioID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partialRuns[scenarioID]
}

// EvaluationCount returns the count of judged expectations.
func (m *MemoryMetrics) EvaluationCount(
	scenarioID, metric, scope string, passed bool,
) int {
	verdict := "failed"
	if passed {
		verdict = "passed"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluations[scenarioID+":"+metric+":"+scope+":"+verdict]
}

// InsufficientCount returns how often an expectation was skipped.
func (m *MemoryMetrics) InsufficientCount(scenarioID, metric, scope string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insufficient[scenarioID+":"+metric+":"+scope]
}

// PersistenceFailures returns the failure count for a sink.
func (m *MemoryMetrics) PersistenceFailures(sink string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistFailed[sink]
}

// ActiveRuns returns the current in-flight runs gauge.
func (m *MemoryMetrics) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCollector_EmitAndStats(t *testing.T) {
	c := NewEventCollector(0)

	var mu sync.Mutex
	var seen []EventType
	c.OnEvent(func(e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	c.Emit(Event{Type: EventRunStarted, ScenarioID: "s1"})
	c.Emit(Event{Type: EventTargetCompleted, ScenarioID: "s1", Status: "success"})
	c.Emit(Event{Type: EventTargetCompleted, ScenarioID: "s1", Status: "timeout"})
	c.Emit(Event{Type: EventVerdict, ScenarioID: "s1", Verdict: "PASS"})
	c.Emit(Event{Type: EventVerdict, ScenarioID: "s1", Verdict: "FAIL"})
	c.Emit(Event{Type: EventInsufficient, ScenarioID: "s1"})
	c.Emit(Event{Type: EventPersistFailed, ScenarioID: "s1"})
	c.Emit(Event{Type: EventRunPartial, ScenarioID: "s1"})
	c.Emit(Event{Type: EventRunCompleted, ScenarioID: "s1"})

	stats := c.Stats()
	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 1, stats.PartialRuns)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.ProbeFailures)
	assert.Equal(t, 1, stats.InsufficientData)
	assert.Equal(t, 1, stats.PersistenceFailures)

	events := c.Events()
	require.Len(t, events, 9)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Len(t, seen, 9)
}

func TestEventCollector_BoundedHistory(t *testing.T) {
	c := NewEventCollector(3)
	for i := 1; i <= 5; i++ {
		c.Emit(Event{Type: EventRunStarted, Iteration: i})
	}

	events := c.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 3, events[0].Iteration)
	assert.Equal(t, 5, events[2].Iteration)
	assert.Equal(t, 5, c.Stats().Total)
}

func TestEventCollector_Reset(t *testing.T) {
	c := NewEventCollector(10)
	c.Emit(Event{Type: EventRunCompleted})
	c.Reset()
	assert.Empty(t, c.Events())
	assert.Zero(t, c.Stats().Runs)
}

func TestNopEmitter(t *testing.T) {
	var e Emitter = NopEmitter{}
	assert.NotPanics(t, func() { e.Emit(Event{}) })
}

package monitor

import (
	"sync"
	"time"
)

// DefaultMaxEvents bounds the retained event history.
const DefaultMaxEvents = 1000

// EventCollector captures scheduler events and keeps running
// totals. The daemon runs indefinitely, so only the most recent
// events are retained.
type EventCollector struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	handlers  []func(Event)
	stats     CollectorStats
}

// CollectorStats holds aggregate statistics.
type CollectorStats struct {
	Total               int           `json:"total"`
	Runs                int           `json:"runs"`
	PartialRuns         int           `json:"partial_runs"`
	Passed              int           `json:"passed"`
	Failed              int           `json:"failed"`
	ProbeFailures       int           `json:"probe_failures"`
	InsufficientData    int           `json:"insufficient_data"`
	PersistenceFailures int           `json:"persistence_failures"`
	StartTime           time.Time     `json:"start_time"`
	Uptime              time.Duration `json:"uptime"`
}

// NewEventCollector creates a collector retaining up to
// maxEvents events. A non-positive value uses DefaultMaxEvents.
func NewEventCollector(maxEvents int) *EventCollector {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &EventCollector{
		events:    make([]Event, 0, 64),
		maxEvents: maxEvents,
		stats:     CollectorStats{StartTime: time.Now()},
	}
}

// OnEvent registers a handler to be called for each event.
func (c *EventCollector) OnEvent(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Emit records an event and notifies all handlers.
func (c *EventCollector) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	if over := len(c.events) - c.maxEvents; over > 0 {
		c.events = append(c.events[:0], c.events[over:]...)
	}
	c.stats.Total++
	switch event.Type {
	case EventRunCompleted:
		c.stats.Runs++
	case EventRunPartial:
		c.stats.Runs++
		c.stats.PartialRuns++
	case EventVerdict:
		if event.Verdict == "PASS" {
			c.stats.Passed++
		} else {
			c.stats.Failed++
		}
	case EventTargetCompleted:
		if event.Status != "success" {
			c.stats.ProbeFailures++
		}
	case EventInsufficient:
		c.stats.InsufficientData++
	case EventPersistFailed:
		c.stats.PersistenceFailures++
	}
	handlers := make([]func(Event), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// Events returns a copy of the retained events.
func (c *EventCollector) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Event, len(c.events))
	copy(result, c.events)
	return result
}

// Stats returns the current aggregate statistics.
func (c *EventCollector) Stats() CollectorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Uptime = time.Since(s.StartTime)
	return s
}

// Reset clears all collected events and statistics.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.stats = CollectorStats{StartTime: time.Now()}
}

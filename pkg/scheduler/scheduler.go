// Package scheduler owns the scenario registry and dispatches due
// scenarios to the runner. Each run executes in its own goroutine so
// a slow scenario never delays another's schedule, and a scenario is
// never started again while a run is in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/runner"
	"digital.vasic.netprobe/pkg/scenario"
	"digital.vasic.netprobe/pkg/schedule"
	"digital.vasic.netprobe/pkg/statestore"
)

// Defaults for the dispatch loop.
const (
	DefaultTick  = time.Second
	DefaultGrace = 60 * time.Second
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

type entry struct {
	spec     *scenario.Spec
	schedule schedule.Schedule
	state    *scenario.RunState
}

// Scheduler dispatches registered scenarios on their schedules.
type Scheduler struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	running bool
	started bool
	stopped bool

	runner  runner.Runner
	store   statestore.Store
	logger  logging.Logger
	metrics metrics.ProbeMetrics
	emitter monitor.Emitter
	now     func() time.Time
	tick    time.Duration
	grace   time.Duration

	wg           sync.WaitGroup
	active       atomic.Int32
	stopCh       chan struct{}
	drain        chan struct{}
	loopDone     chan struct{}
	stopOnce     sync.Once
	probeCtx     context.Context
	cancelProbes context.CancelFunc
}

// New creates a Scheduler that hands due scenarios to r.
func New(r runner.Runner, opts ...Option) *Scheduler {
	probeCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		entries:      make(map[string]*entry),
		runner:       r,
		logger:       logging.NullLogger{},
		metrics:      metrics.NoopMetrics{},
		emitter:      monitor.NopEmitter{},
		now:          time.Now,
		tick:         DefaultTick,
		grace:        DefaultGrace,
		stopCh:       make(chan struct{}),
		drain:        make(chan struct{}),
		loopDone:     make(chan struct{}),
		probeCtx:     probeCtx,
		cancelProbes: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a scenario. The schedule is parsed and the first
// due time computed immediately, so a malformed scenario is
// rejected with a *scenario.ConfigurationError before any dispatch.
// Duplicate IDs are rejected. With a state store configured, the
// scenario's iteration counter and history are restored.
func (s *Scheduler) Register(spec *scenario.Spec) error {
	if spec == nil || spec.ID == "" {
		return &scenario.ConfigurationError{
			Index: -1, Field: "id", Message: "scenario id is required",
		}
	}

	now := s.now()
	sched, err := schedule.Parse(spec.Schedule, now)
	if err != nil {
		var ce *scenario.ConfigurationError
		if errors.As(err, &ce) {
			ce.ScenarioID = spec.ID
		}
		return err
	}

	if len(spec.Targets) == 0 {
		targets, err := spec.ResolveTargets()
		if err != nil {
			return &scenario.ConfigurationError{
				ScenarioID: spec.ID, Index: -1,
				Field: "parameters", Message: err.Error(),
			}
		}
		spec.Targets = targets
	}
	if len(spec.Targets) == 0 {
		return &scenario.ConfigurationError{
			ScenarioID: spec.ID, Index: -1,
			Field: "parameters", Message: "no targets configured",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[spec.ID]; exists {
		return fmt.Errorf("scenario already registered: %s", spec.ID)
	}

	state := scenario.NewRunState(spec.ID)
	s.restore(state)

	snap := state.Snapshot()
	next, ok := sched.Next(now, snap.LastRun, snap.Runs)
	state.Schedule(next, ok)

	s.entries[spec.ID] = &entry{spec: spec, schedule: sched, state: state}
	s.order = append(s.order, spec.ID)

	s.logEvent("scenario_registered", map[string]any{
		"scenario_id": spec.ID,
		"mode":        string(sched.Mode()),
		"targets":     len(spec.Targets),
		"next_due":    next,
		"iteration":   snap.Iteration,
	})
	s.emitter.Emit(monitor.Event{
		Type:       monitor.EventRegistered,
		ScenarioID: spec.ID,
		Message:    string(sched.Mode()),
		Timestamp:  now,
	})
	return nil
}

func (s *Scheduler) restore(state *scenario.RunState) {
	if s.store == nil {
		return
	}
	rec, err := s.store.Load(state.ID())
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			s.logger.Warn("state restore failed",
				logging.StringField("scenario_id", state.ID()),
				logging.ErrorField(err),
			)
		}
		return
	}
	rec.Apply(state)
}

// PruneState removes stored state for scenarios that are no longer
// registered and returns their IDs. Without a state store it does
// nothing.
func (s *Scheduler) PruneState() ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	recs, err := s.store.List()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var stale []string
	for _, rec := range recs {
		if _, ok := s.entries[rec.ScenarioID]; !ok {
			stale = append(stale, rec.ScenarioID)
		}
	}
	s.mu.RUnlock()

	var errs []error
	var pruned []string
	for _, id := range stale {
		if err := s.store.Delete(id); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, id)
		s.logEvent("state_pruned", map[string]any{"scenario_id": id})
	}
	return pruned, errors.Join(errs...)
}

// Start runs the dispatch loop until Stop is called or ctx is
// cancelled. Cancelling ctx performs the same graceful shutdown as
// Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.running = true
	count := len(s.entries)
	s.mu.Unlock()
	defer close(s.loopDone)

	s.logEvent("scheduler_started", map[string]any{
		"scenarios":    count,
		"tick_seconds": s.tick.Seconds(),
	})

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.dispatch()
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(context.Background())
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.dispatch()
		}
	}
}

// Stop stops triggering, asks in-flight runs to stop at their next
// target boundary, waits up to the grace period and then cancels
// the probes still running. It returns once every run goroutine has
// finished or ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	err := s.shutdown(ctx)

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		s.stopped = true
		s.mu.Unlock()
		close(s.stopCh)
		close(s.drain)
		s.logEvent("scheduler_stopping", map[string]any{
			"active_runs":   int(s.active.Load()),
			"grace_seconds": s.grace.Seconds(),
		})
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-done:
		s.cancelProbes()
		return nil
	case <-timer.C:
		s.logger.Warn("grace period expired, cancelling probes",
			logging.IntField("active_runs", int(s.active.Load())),
		)
		s.cancelProbes()
	case <-ctx.Done():
		s.cancelProbes()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch starts every due scenario that is not already running.
// The read lock is held while goroutines are added so that shutdown
// never races a wg.Add.
func (s *Scheduler) dispatch() {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return
	}

	for _, id := range s.order {
		e := s.entries[id]
		snap := e.state.Snapshot()
		if snap.Label(now) != scenario.StateDue {
			continue
		}
		if !e.state.TryStart() {
			continue
		}
		s.wg.Add(1)
		go s.execute(e)
	}
}

func (s *Scheduler) execute(e *entry) {
	defer s.wg.Done()

	s.metrics.SetActiveRuns(int(s.active.Add(1)))
	defer func() {
		s.metrics.SetActiveRuns(int(s.active.Add(-1)))
	}()

	runs := e.state.Snapshot().Runs
	_, err := s.runner.Run(s.probeCtx, runner.Request{
		Spec:  e.spec,
		State: e.state,
		Drain: s.drain,
	})
	if err != nil {
		s.logger.Error("run failed",
			logging.StringField("scenario_id", e.spec.ID),
			logging.ErrorField(err),
		)
		// A run that failed before completing still consumes its
		// trigger; otherwise the scenario stays due on every tick.
		if e.state.Snapshot().Runs == runs {
			e.state.Attempt(s.now())
		}
	}

	// The next due time is set before the running flag clears so
	// the dispatcher never sees a finished run with a stale due time.
	s.reschedule(e)
	s.save(e)
	e.state.Finish()
}

func (s *Scheduler) reschedule(e *entry) {
	now := s.now()
	snap := e.state.Snapshot()
	next, ok := e.schedule.Next(now, snap.LastRun, snap.Runs)
	e.state.Schedule(next, ok)
	if ok {
		return
	}
	s.logEvent("scenario_exhausted", map[string]any{
		"scenario_id": e.spec.ID,
		"runs":        snap.Runs,
	})
	s.emitter.Emit(monitor.Event{
		Type:       monitor.EventExhausted,
		ScenarioID: e.spec.ID,
		Iteration:  snap.Iteration,
		Timestamp:  now,
	})
}

func (s *Scheduler) save(e *entry) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(statestore.FromState(e.state)); err != nil {
		s.logger.Warn("state save failed",
			logging.StringField("scenario_id", e.spec.ID),
			logging.ErrorField(err),
		)
	}
}

// Status returns a snapshot of the scheduler and every scenario in
// registration order.
func (s *Scheduler) Status() scenario.SchedulerStatus {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := scenario.SchedulerStatus{
		Running:   s.running,
		Total:     len(s.entries),
		Timestamp: now,
		Scenarios: make([]scenario.ScenarioStatus, 0, len(s.order)),
	}
	for _, id := range s.order {
		e := s.entries[id]
		snap := e.state.Snapshot()
		label := snap.Label(now)
		switch label {
		case scenario.StateRunning:
			status.Active++
		case scenario.StateExhausted:
			status.Exhausted++
		}
		status.Scenarios = append(status.Scenarios, scenario.ScenarioStatus{
			ScenarioID: id,
			Name:       e.spec.Name,
			Mode:       string(e.schedule.Mode()),
			State:      label,
			Iteration:  snap.Iteration,
			Runs:       snap.Runs,
			MaxRuns:    e.schedule.MaxRuns(),
			NextDue:    snap.NextDue,
			LastRun:    snap.LastRun,
		})
	}
	return status
}

// Count returns the number of registered scenarios.
func (s *Scheduler) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// logEvent emits a structured log entry.
func (s *Scheduler) logEvent(event string, data map[string]any) {
	s.logger.Info(event, logging.FieldsFromMap(data)...)
}

package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/runner"
	"digital.vasic.netprobe/pkg/scenario"
	"digital.vasic.netprobe/pkg/statestore"
)

// --- fake clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- stub runner ---

type stubRunner struct {
	clock *fakeClock

	// block holds Run until closed. wait makes Run first wait
	// for the drain channel or the context.
	block chan struct{}
	wait  string // "", "drain", "ctx"

	mu          sync.Mutex
	calls       map[string]int
	inFlight    int
	maxInFlight int
	sawDrain    bool
	sawCancel   bool
	err         error
	// incomplete skips State.Complete, as a failing pre-hook does.
	incomplete bool
}

func newStubRunner(clock *fakeClock) *stubRunner {
	return &stubRunner{clock: clock, calls: make(map[string]int)}
}

func (r *stubRunner) Run(
	ctx context.Context, req runner.Request,
) (*scenario.Batch, error) {
	r.mu.Lock()
	r.calls[req.Spec.ID]++
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	block, wait := r.block, r.wait
	r.mu.Unlock()

	switch wait {
	case "drain":
		<-req.Drain
		r.mu.Lock()
		r.sawDrain = true
		r.mu.Unlock()
	case "ctx":
		<-ctx.Done()
		r.mu.Lock()
		r.sawCancel = true
		r.mu.Unlock()
	}
	if block != nil {
		<-block
	}

	iteration := req.State.NextIteration()

	r.mu.Lock()
	r.inFlight--
	err, incomplete := r.err, r.incomplete
	r.mu.Unlock()

	if !incomplete {
		req.State.Complete(iteration, nil, r.clock.Now())
	}
	return &scenario.Batch{ScenarioID: req.Spec.ID, Iteration: iteration}, err
}

func (r *stubRunner) Calls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

// --- fixtures ---

var target = scenario.Target{Host: "10.0.0.1", Port: 5201, Role: scenario.RolePrivate}

func onceSpec(id string) *scenario.Spec {
	return &scenario.Spec{
		ID:       id,
		Enabled:  true,
		Schedule: scenario.ScheduleSpec{Mode: "once", StartTime: "immediate", Timezone: "UTC"},
		Targets:  []scenario.Target{target},
	}
}

func recurringSpec(id, start string, interval, times int) *scenario.Spec {
	return &scenario.Spec{
		ID:      id,
		Enabled: true,
		Schedule: scenario.ScheduleSpec{
			Mode: "recurring", StartTime: start, Timezone: "UTC",
			RecurringInterval: interval, RecurringTimes: times,
		},
		Targets: []scenario.Target{target},
	}
}

func newTestScheduler(r runner.Runner, clock *fakeClock, opts ...Option) *Scheduler {
	base := []Option{WithClock(clock.Now), WithTick(5 * time.Millisecond)}
	return New(r, append(base, opts...)...)
}

func start(t *testing.T, s *Scheduler) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return errCh
}

// =========================================================
// Register
// =========================================================

func TestScheduler_Register(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newStubRunner(clock), clock)

	require.NoError(t, s.Register(recurringSpec("s1", "+10m", 30, 0)))
	assert.Equal(t, 1, s.Count())

	status := s.Status()
	require.Len(t, status.Scenarios, 1)
	row := status.Scenarios[0]
	assert.Equal(t, "recurring", row.Mode)
	assert.Equal(t, scenario.StateIdle, row.State)
	assert.Equal(t, clock.Now().Add(10*time.Minute), row.NextDue)
}

func TestScheduler_Register_Duplicate(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newStubRunner(clock), clock)

	require.NoError(t, s.Register(onceSpec("s1")))
	err := s.Register(onceSpec("s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestScheduler_Register_Invalid(t *testing.T) {
	badCron := onceSpec("cron1")
	badCron.Schedule = scenario.ScheduleSpec{Mode: "cron", Cron: "61 * * * *"}

	noTargets := onceSpec("empty")
	noTargets.Targets = nil

	badTarget := onceSpec("port")
	badTarget.Targets = nil
	badTarget.Parameters.Private = []string{"10.0.0.1:notaport"}

	tests := []struct {
		name  string
		spec  *scenario.Spec
		field string
	}{
		{"nil spec", nil, "id"},
		{"missing id", &scenario.Spec{}, "id"},
		{"malformed cron", badCron, "schedule.cron"},
		{"no targets", noTargets, "parameters"},
		{"bad target", badTarget, "parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := newTestScheduler(newStubRunner(clock), clock)

			err := s.Register(tt.spec)
			var ce *scenario.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
			if tt.spec != nil && tt.spec.ID != "" {
				assert.Equal(t, tt.spec.ID, ce.ScenarioID)
			}
			assert.Equal(t, 0, s.Count())
		})
	}
}

func TestScheduler_Register_ResolvesTargets(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newStubRunner(clock), clock)

	spec := onceSpec("s1")
	spec.Targets = nil
	spec.Parameters.Private = []string{"10.0.0.1"}
	spec.Parameters.Public = []string{"iperf.example.net:5202"}

	require.NoError(t, s.Register(spec))
	require.Len(t, spec.Targets, 2)
	assert.Equal(t, scenario.RolePrivate, spec.Targets[0].Role)
	assert.Equal(t, 5202, spec.Targets[1].Port)
}

// =========================================================
// Dispatch
// =========================================================

func TestScheduler_OnceRunsExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	collector := monitor.NewEventCollector(100)
	s := newTestScheduler(r, clock, WithEmitter(collector))

	require.NoError(t, s.Register(onceSpec("s1")))
	start(t, s)

	require.Eventually(t, func() bool {
		return s.Status().Exhausted == 1
	}, 2*time.Second, 5*time.Millisecond)

	clock.Advance(time.Hour)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.Calls("s1"))

	row := s.Status().Scenarios[0]
	assert.Equal(t, scenario.StateExhausted, row.State)
	assert.Equal(t, 1, row.Iteration)
	assert.Equal(t, 1, row.MaxRuns)
	assert.True(t, row.NextDue.IsZero())

	var exhausted int
	for _, e := range collector.Events() {
		if e.Type == monitor.EventExhausted {
			exhausted++
		}
	}
	assert.Equal(t, 1, exhausted)
}

func TestScheduler_RecurringStopsAtLimit(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	s := newTestScheduler(r, clock)

	require.NoError(t, s.Register(recurringSpec("s1", "immediate", 1, 3)))
	start(t, s)

	for i := 1; i <= 3; i++ {
		require.Eventually(t, func() bool {
			return r.Calls("s1") == i
		}, 2*time.Second, 5*time.Millisecond)
		clock.Advance(time.Minute)
	}

	require.Eventually(t, func() bool {
		return s.Status().Exhausted == 1
	}, 2*time.Second, 5*time.Millisecond)
	clock.Advance(10 * time.Minute)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, r.Calls("s1"))
}

func TestScheduler_NeverDoubleTriggered(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	r.block = make(chan struct{})
	m := metrics.NewMemoryMetrics()
	s := newTestScheduler(r, clock, WithMetrics(m))

	require.NoError(t, s.Register(recurringSpec("s1", "immediate", 1, 0)))
	start(t, s)

	require.Eventually(t, func() bool {
		return r.Calls("s1") == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Several due times pass while the run is in flight.
	clock.Advance(5 * time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, r.Calls("s1"))
	assert.Equal(t, 1, s.Status().Active)
	assert.Equal(t, scenario.StateRunning, s.Status().Scenarios[0].State)
	assert.Equal(t, 1, m.ActiveRuns())

	close(r.block)
	require.Eventually(t, func() bool {
		return r.Calls("s1") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, 1, r.maxInFlight)
	r.mu.Unlock()
}

func TestScheduler_SlowScenarioDoesNotBlockOthers(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	slow := make(chan struct{})
	s := newTestScheduler(runner.Runner(runnerFunc(func(
		ctx context.Context, req runner.Request,
	) (*scenario.Batch, error) {
		if req.Spec.ID == "slow" {
			<-slow
		}
		return r.Run(ctx, req)
	})), clock)

	require.NoError(t, s.Register(onceSpec("slow")))
	require.NoError(t, s.Register(onceSpec("fast")))
	start(t, s)

	require.Eventually(t, func() bool {
		return r.Calls("fast") == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, r.Calls("slow"))
	close(slow)
}

type runnerFunc func(ctx context.Context, req runner.Request) (*scenario.Batch, error)

func (f runnerFunc) Run(ctx context.Context, req runner.Request) (*scenario.Batch, error) {
	return f(ctx, req)
}

func TestScheduler_RunErrorStillReschedules(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	r.err = errors.New("pre-hook failed")
	s := newTestScheduler(r, clock)

	require.NoError(t, s.Register(onceSpec("s1")))
	start(t, s)

	require.Eventually(t, func() bool {
		return s.Status().Exhausted == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_FailedRunConsumesTrigger(t *testing.T) {
	t.Run("once is exhausted after one attempt", func(t *testing.T) {
		clock := newFakeClock()
		r := newStubRunner(clock)
		r.err = errors.New("pre-hook failed")
		r.incomplete = true
		s := newTestScheduler(r, clock)

		require.NoError(t, s.Register(onceSpec("s1")))
		start(t, s)

		require.Eventually(t, func() bool {
			return s.Status().Exhausted == 1
		}, 2*time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, 1, r.Calls("s1"))
		st := s.Status().Scenarios[0]
		assert.Equal(t, 1, st.Runs)
		assert.Equal(t, 0, st.Iteration)
	})

	t.Run("recurring waits for the next interval", func(t *testing.T) {
		clock := newFakeClock()
		r := newStubRunner(clock)
		r.err = errors.New("pre-hook failed")
		r.incomplete = true
		s := newTestScheduler(r, clock)

		require.NoError(t, s.Register(recurringSpec("s1", "immediate", 1, 3)))
		start(t, s)

		require.Eventually(t, func() bool {
			st := s.Status().Scenarios[0]
			return st.Runs == 1 && st.State != scenario.StateRunning
		}, 2*time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, r.Calls("s1"))

		st := s.Status().Scenarios[0]
		assert.Equal(t, 1, st.Runs)
		assert.Equal(t, clock.Now().Add(time.Minute), st.NextDue)
	})
}

// =========================================================
// Lifecycle
// =========================================================

func TestScheduler_StopDrainsInFlightRuns(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	r.wait = "drain"
	s := newTestScheduler(r, clock, WithGrace(5*time.Second))

	require.NoError(t, s.Register(onceSpec("s1")))
	errCh := start(t, s)

	require.Eventually(t, func() bool {
		return r.Calls("s1") == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, <-errCh)

	r.mu.Lock()
	assert.True(t, r.sawDrain)
	assert.False(t, r.sawCancel)
	r.mu.Unlock()
	assert.False(t, s.Status().Running)
}

func TestScheduler_StopCancelsProbesAfterGrace(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	r.wait = "ctx"
	s := newTestScheduler(r, clock, WithGrace(20*time.Millisecond))

	require.NoError(t, s.Register(onceSpec("s1")))
	start(t, s)

	require.Eventually(t, func() bool {
		return r.Calls("s1") == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	r.mu.Lock()
	assert.True(t, r.sawCancel)
	r.mu.Unlock()
}

func TestScheduler_StartContextCancellation(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	r.wait = "drain"
	s := newTestScheduler(r, clock)

	require.NoError(t, s.Register(onceSpec("s1")))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return r.Calls("s1") == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
	r.mu.Lock()
	assert.True(t, r.sawDrain)
	r.mu.Unlock()
}

func TestScheduler_StartTwiceAndAfterStop(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newStubRunner(clock), clock)
	start(t, s)

	require.Eventually(t, func() bool {
		return s.Status().Running
	}, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	stopped := New(newStubRunner(clock))
	require.NoError(t, stopped.Stop(context.Background()))
	assert.ErrorIs(t, stopped.Start(context.Background()), ErrStopped)
}

func TestScheduler_Status(t *testing.T) {
	clock := newFakeClock()
	r := newStubRunner(clock)
	s := newTestScheduler(r, clock)

	once := onceSpec("once")
	once.Name = "Smoke test"
	require.NoError(t, s.Register(once))
	require.NoError(t, s.Register(recurringSpec("later", "+10m", 60, 5)))

	status := s.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, scenario.StateDue, status.Scenarios[0].State)
	assert.Equal(t, "Smoke test", status.Scenarios[0].Name)
	assert.Equal(t, 5, status.Scenarios[1].MaxRuns)

	start(t, s)
	require.Eventually(t, func() bool {
		st := s.Status()
		return st.Exhausted == 1 && st.Running
	}, 2*time.Second, 5*time.Millisecond)

	status = s.Status()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, scenario.StateIdle, status.Scenarios[1].State)
	assert.Equal(t, 0, r.Calls("later"))
}

func TestScheduler_StateStore(t *testing.T) {
	clock := newFakeClock()
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(statestore.Record{
		ScenarioID: "s1",
		Iteration:  4,
		History: []scenario.RunResult{
			{ScenarioID: "s1", Status: scenario.StatusSuccess, Mbps: 90},
		},
	}))

	r := newStubRunner(clock)
	s := newTestScheduler(r, clock, WithStateStore(store))
	require.NoError(t, s.Register(onceSpec("s1")))
	assert.Equal(t, 4, s.Status().Scenarios[0].Iteration)

	start(t, s)
	require.Eventually(t, func() bool {
		rec, err := store.Load("s1")
		return err == nil && rec.Iteration == 5
	}, 2*time.Second, 5*time.Millisecond)

	rec, err := store.Load("s1")
	require.NoError(t, err)
	assert.Len(t, rec.History, 1)
}

func TestScheduler_PruneState(t *testing.T) {
	clock := newFakeClock()
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []string{"kept", "removed-a", "removed-b"} {
		require.NoError(t, store.Save(statestore.Record{ScenarioID: id, Iteration: 2}))
	}

	s := newTestScheduler(newStubRunner(clock), clock, WithStateStore(store))
	require.NoError(t, s.Register(onceSpec("kept")))

	pruned, err := s.PruneState()
	require.NoError(t, err)
	assert.Equal(t, []string{"removed-a", "removed-b"}, pruned)

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0].ScenarioID)
}

func TestScheduler_PruneStateWithoutStore(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newStubRunner(clock), clock)
	pruned, err := s.PruneState()
	assert.NoError(t, err)
	assert.Empty(t, pruned)
}

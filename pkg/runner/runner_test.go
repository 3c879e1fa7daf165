package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/probe"
	"digital.vasic.netprobe/pkg/scenario"
)

// --- stub probe ---

type stubProbe struct {
	mu      sync.Mutex
	mbps    map[string]float64
	errs    map[string]error
	calls   []probe.Request
	onProbe func(req probe.Request)
}

func newStubProbe() *stubProbe {
	return &stubProbe{
		mbps: make(map[string]float64),
		errs: make(map[string]error),
	}
}

func key(t scenario.Target, d scenario.Direction) string {
	return t.String() + "/" + string(d)
}

func (p *stubProbe) Run(
	ctx context.Context, req probe.Request,
) (*probe.Measurement, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	hook := p.onProbe
	mbps := p.mbps[key(req.Target, req.Direction)]
	err := p.errs[key(req.Target, req.Direction)]
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if ctx.Err() != nil {
		return nil, &scenario.ProbeError{
			Status: scenario.StatusTimeout, Target: req.Target,
			Direction: req.Direction, Err: ctx.Err(),
		}
	}
	if err != nil {
		return nil, err
	}
	return &probe.Measurement{Mbps: mbps, BitsPerSecond: mbps * 1e6}, nil
}

func (p *stubProbe) Calls() []probe.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]probe.Request(nil), p.calls...)
}

// --- stub sink ---

type stubSink struct {
	name string
	err  error

	mu      sync.Mutex
	batches []*scenario.Batch
	ctxErrs []error
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Write(ctx context.Context, b *scenario.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

func (s *stubSink) Batches() []*scenario.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*scenario.Batch(nil), s.batches...)
}

// --- stub logger ---

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) add(level, msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, level+":"+msg)
	l.mu.Unlock()
}

func (l *stubLogger) Info(msg string, _ ...logging.Field)  { l.add("info", msg) }
func (l *stubLogger) Warn(msg string, _ ...logging.Field)  { l.add("warn", msg) }
func (l *stubLogger) Error(msg string, _ ...logging.Field) { l.add("error", msg) }
func (l *stubLogger) Debug(msg string, _ ...logging.Field) { l.add("debug", msg) }
func (l *stubLogger) WithFields(...logging.Field) logging.Logger {
	return l
}
func (l *stubLogger) LogProbe(logging.ProbeLog) {}
func (l *stubLogger) Close() error              { return nil }

func (l *stubLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// --- fixtures ---

var (
	privateTarget = scenario.Target{Host: "10.0.0.1", Port: 5201, Role: scenario.RolePrivate}
	publicTarget  = scenario.Target{Host: "iperf.example.net", Port: 5202, Role: scenario.RolePublic}
	baseTime      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func fixedClock() func() time.Time {
	return func() time.Time { return baseTime }
}

func newSpec(exps ...scenario.Expectation) *scenario.Spec {
	return &scenario.Spec{
		ID:      "s1",
		Enabled: true,
		Parameters: scenario.Parameters{
			Duration: 5, Uplink: "10", Downlink: "100",
		},
		Targets:      []scenario.Target{privateTarget, publicTarget},
		Expectations: exps,
	}
}

func perIteration(m scenario.Metric, op string, v float64) scenario.Expectation {
	return scenario.Expectation{
		Metric: m, Operator: op, Value: scenario.Values{v},
		Unit: "Mbps", Scope: scenario.ScopePerIteration,
	}
}

func aggregated(
	m scenario.Metric, scope scenario.Scope, agg, op string, v float64,
) scenario.Expectation {
	return scenario.Expectation{
		Metric: m, Operator: op, Value: scenario.Values{v},
		Unit: "Mbps", Scope: scope, Aggregation: agg,
	}
}

func healthyProbe() *stubProbe {
	p := newStubProbe()
	p.mbps[key(privateTarget, scenario.DirectionUpload)] = 10
	p.mbps[key(privateTarget, scenario.DirectionDownload)] = 80
	p.mbps[key(publicTarget, scenario.DirectionUpload)] = 20
	p.mbps[key(publicTarget, scenario.DirectionDownload)] = 40
	return p
}

// =========================================================
// DefaultRunner.Run tests
// =========================================================

func TestDefaultRunner_Run_Success(t *testing.T) {
	p := healthyProbe()
	sink := &stubSink{name: "memory"}
	m := metrics.NewMemoryMetrics()
	collector := monitor.NewEventCollector(100)

	r := NewRunner(
		WithProbe(p),
		WithSinks(sink),
		WithMetrics(m),
		WithEmitter(collector),
		WithClock(fixedClock()),
	)

	spec := newSpec(
		perIteration(scenario.MetricDownloadSpeed, "gte", 50),
		aggregated(scenario.MetricUploadSpeed, scenario.ScopeOverall, "avg", "gte", 5),
	)
	state := scenario.NewRunState(spec.ID)

	batch, err := r.Run(context.Background(), Request{Spec: spec, State: state})
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Iteration)
	assert.NotEmpty(t, batch.RunID)
	assert.Equal(t, baseTime, batch.Timestamp)
	assert.False(t, batch.Partial)

	require.Len(t, batch.Results, 4)
	order := []string{
		key(privateTarget, scenario.DirectionUpload),
		key(privateTarget, scenario.DirectionDownload),
		key(publicTarget, scenario.DirectionUpload),
		key(publicTarget, scenario.DirectionDownload),
	}
	for i, res := range batch.Results {
		assert.Equal(t, order[i], key(res.Target, res.Direction))
		assert.Equal(t, scenario.StatusSuccess, res.Status)
		assert.Equal(t, batch.RunID, res.RunID)
		assert.Equal(t, 1, res.Iteration)
	}

	require.Len(t, batch.Records, 3)
	assert.InDelta(t, 2.0/3.0, batch.SuccessRate(), 1e-9)
	assert.Len(t, batch.Aggregates, 18)

	snap := state.Snapshot()
	assert.Equal(t, 1, snap.Iteration)
	assert.Equal(t, 1, snap.Runs)
	assert.Equal(t, 4, snap.HistorySize)
	assert.Equal(t, baseTime, snap.LastRun)

	require.Len(t, sink.Batches(), 1)
	assert.Same(t, batch, sink.Batches()[0])

	assert.Equal(t, 2, m.ProbeCount("s1", "upload", "success"))
	assert.Equal(t, 2, m.ProbeCount("s1", "download", "success"))
	assert.Equal(t, 1, m.RunCount("s1"))
	assert.Equal(t, 1, m.EvaluationCount("s1", "download_speed", "per_iteration", false))

	stats := collector.Stats()
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
}

func TestDefaultRunner_Run_ProbeParameters(t *testing.T) {
	p := healthyProbe()
	r := NewRunner(WithProbe(p), WithClock(fixedClock()))

	spec := newSpec()
	spec.Targets = spec.Targets[:1]
	_, err := r.Run(context.Background(), Request{
		Spec: spec, State: scenario.NewRunState(spec.ID),
	})
	require.NoError(t, err)

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "10", calls[0].Bandwidth)
	assert.Equal(t, "100", calls[1].Bandwidth)
	assert.Equal(t, 5*time.Second, calls[0].Duration)

	r = NewRunner(WithProbe(p), WithProbeDuration(time.Second))
	_, err = r.Run(context.Background(), Request{
		Spec: spec, State: scenario.NewRunState(spec.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.Calls()[2].Duration)
}

func TestDefaultRunner_Run_ProbeFailure(t *testing.T) {
	p := healthyProbe()
	for _, tgt := range []scenario.Target{privateTarget, publicTarget} {
		p.errs[key(tgt, scenario.DirectionDownload)] = &scenario.ProbeError{
			Status: scenario.StatusTimeout, Target: tgt,
			Direction: scenario.DirectionDownload,
			Err:       context.DeadlineExceeded,
		}
	}
	logger := &stubLogger{}
	m := metrics.NewMemoryMetrics()
	collector := monitor.NewEventCollector(100)

	r := NewRunner(
		WithProbe(p), WithLogger(logger), WithMetrics(m),
		WithEmitter(collector), WithClock(fixedClock()),
	)
	spec := newSpec(
		aggregated(scenario.MetricDownloadSpeed, scenario.ScopeOverall, "avg", "gte", 50),
		aggregated(scenario.MetricUploadSpeed, scenario.ScopeOverall, "max", "gte", 15),
	)
	state := scenario.NewRunState(spec.ID)

	batch, err := r.Run(context.Background(), Request{Spec: spec, State: state})
	require.NoError(t, err)

	require.Len(t, batch.Results, 4)
	assert.Equal(t, scenario.StatusTimeout, batch.Results[1].Status)
	assert.Zero(t, batch.Results[1].Mbps)
	assert.NotEmpty(t, batch.Results[1].Error)

	require.Len(t, batch.Records, 1)
	assert.Equal(t, scenario.MetricUploadSpeed, batch.Records[0].Metric)
	require.Len(t, batch.Skipped, 1)
	assert.Equal(t, scenario.MetricDownloadSpeed, batch.Skipped[0].Metric)

	assert.Equal(t, 2, state.Snapshot().HistorySize)
	assert.Equal(t, 2, m.ProbeCount("s1", "download", "timeout"))
	assert.Equal(t, 1, m.InsufficientCount("s1", "download_speed", "overall"))

	stats := collector.Stats()
	assert.Equal(t, 2, stats.ProbeFailures)
	assert.Equal(t, 1, stats.InsufficientData)

	msgs := logger.Messages()
	assert.Contains(t, msgs, "warn:probe failed")
	assert.Contains(t, msgs, "warn:"+batch.Skipped[0].Error())
}

func TestDefaultRunner_Run_DrainMidIteration(t *testing.T) {
	drain := make(chan struct{})
	p := healthyProbe()
	var once sync.Once
	p.onProbe = func(req probe.Request) {
		if req.Direction == scenario.DirectionDownload {
			once.Do(func() { close(drain) })
		}
	}
	sink := &stubSink{name: "memory"}
	m := metrics.NewMemoryMetrics()
	collector := monitor.NewEventCollector(100)

	r := NewRunner(
		WithProbe(p), WithSinks(sink), WithMetrics(m),
		WithEmitter(collector), WithClock(fixedClock()),
	)
	spec := newSpec(perIteration(scenario.MetricDownloadSpeed, "gte", 1))
	state := scenario.NewRunState(spec.ID)

	batch, err := r.Run(context.Background(), Request{
		Spec: spec, State: state, Drain: drain,
	})
	require.NoError(t, err)

	assert.True(t, batch.Partial)
	require.Len(t, batch.Results, 2, "second target must not start")
	assert.Empty(t, batch.Records)
	assert.Empty(t, batch.Aggregates)

	assert.Equal(t, 1, state.Snapshot().Iteration)
	assert.Equal(t, 2, state.Snapshot().HistorySize)
	require.Len(t, sink.Batches(), 1)
	assert.True(t, sink.Batches()[0].Partial)

	assert.Equal(t, 1, m.PartialRunCount("s1"))
	assert.Equal(t, 1, collector.Stats().PartialRuns)
}

func TestDefaultRunner_Run_DrainBeforeFirstTarget(t *testing.T) {
	drain := make(chan struct{})
	close(drain)
	p := healthyProbe()
	sink := &stubSink{name: "memory"}

	r := NewRunner(WithProbe(p), WithSinks(sink))
	spec := newSpec()
	state := scenario.NewRunState(spec.ID)

	batch, err := r.Run(context.Background(), Request{
		Spec: spec, State: state, Drain: drain,
	})
	require.NoError(t, err)
	assert.True(t, batch.Partial)
	assert.Empty(t, batch.Results)
	assert.Empty(t, p.Calls())
	assert.Empty(t, sink.Batches())
	assert.Equal(t, 0, state.Snapshot().Iteration)
	assert.Equal(t, 1, state.NextIteration())
}

func TestDefaultRunner_Run_SinkFailure(t *testing.T) {
	good := &stubSink{name: "csv"}
	bad := &stubSink{name: "database", err: errors.New("connection refused")}
	logger := &stubLogger{}
	m := metrics.NewMemoryMetrics()
	collector := monitor.NewEventCollector(100)

	r := NewRunner(
		WithProbe(healthyProbe()), WithSinks(bad, good),
		WithLogger(logger), WithMetrics(m), WithEmitter(collector),
	)
	spec := newSpec()
	state := scenario.NewRunState(spec.ID)

	batch, err := r.Run(context.Background(), Request{Spec: spec, State: state})
	require.NoError(t, err)

	require.Len(t, batch.PersistErrors, 1)
	var pe *scenario.PersistenceError
	require.ErrorAs(t, batch.PersistErrors[0], &pe)
	assert.Equal(t, "database", pe.Sink)

	assert.Len(t, good.Batches(), 1)
	assert.Len(t, bad.Batches(), 1)
	assert.Equal(t, 1, m.PersistenceFailures("database"))
	assert.Equal(t, 0, m.PersistenceFailures("csv"))
	assert.Equal(t, 1, collector.Stats().PersistenceFailures)
	assert.Contains(t, logger.Messages(), "warn:sink write failed")
	assert.Equal(t, 1, state.Snapshot().Iteration)
}

func TestDefaultRunner_Persist_ReturnsPersistenceErrors(t *testing.T) {
	r := NewRunner(WithSinks(
		&stubSink{name: "a", err: errors.New("disk full")},
		&stubSink{name: "b"},
	))
	errs := r.persist(context.Background(), &scenario.Batch{ScenarioID: "s1"})
	require.Len(t, errs, 1)

	var pe *scenario.PersistenceError
	require.True(t, errors.As(errs[0], &pe))
	assert.Equal(t, "a", pe.Sink)
	assert.EqualError(t, pe.Unwrap(), "disk full")
}

func TestDefaultRunner_Run_SinksSurviveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &stubSink{name: "memory"}
	r := NewRunner(WithProbe(healthyProbe()), WithSinks(sink))
	spec := newSpec()

	batch, err := r.Run(ctx, Request{Spec: spec, State: scenario.NewRunState(spec.ID)})
	require.NoError(t, err)

	for _, res := range batch.Results {
		assert.Equal(t, scenario.StatusTimeout, res.Status)
	}
	require.Len(t, sink.ctxErrs, 1)
	assert.NoError(t, sink.ctxErrs[0])
}

func TestDefaultRunner_Run_ScenarioScopeAcrossIterations(t *testing.T) {
	p := healthyProbe()
	r := NewRunner(WithProbe(p), WithClock(fixedClock()))
	spec := newSpec(
		aggregated(scenario.MetricDownloadSpeed, scenario.ScopeScenario, "avg", "gte", 50),
	)
	state := scenario.NewRunState(spec.ID)

	first, err := r.Run(context.Background(), Request{Spec: spec, State: state})
	require.NoError(t, err)
	require.Len(t, first.ScenarioRecords, 1)
	assert.Equal(t, 60.0, first.ScenarioRecords[0].Actual)
	assert.Equal(t, scenario.IterationAll, first.ScenarioRecords[0].Iteration)

	p.mu.Lock()
	p.mbps[key(privateTarget, scenario.DirectionDownload)] = 20
	p.mbps[key(publicTarget, scenario.DirectionDownload)] = 20
	p.mu.Unlock()

	second, err := r.Run(context.Background(), Request{Spec: spec, State: state})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Iteration)
	require.Len(t, second.ScenarioRecords, 1)
	assert.Equal(t, 40.0, second.ScenarioRecords[0].Actual)
	assert.False(t, second.ScenarioRecords[0].Passed)
	assert.Equal(t, 4, second.ScenarioRecords[0].SampleCount)
}

func TestDefaultRunner_Hooks(t *testing.T) {
	t.Run("pre-hook failure aborts", func(t *testing.T) {
		p := healthyProbe()
		r := NewRunner(
			WithProbe(p),
			WithPreHook(func(context.Context, *scenario.Spec, *scenario.Batch) error {
				return errors.New("target unreachable")
			}),
		)
		spec := newSpec()
		state := scenario.NewRunState(spec.ID)

		_, err := r.Run(context.Background(), Request{Spec: spec, State: state})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pre-hook failed")
		assert.Empty(t, p.Calls())
		assert.Equal(t, 0, state.Snapshot().Runs)
	})

	t.Run("post-hook failure is logged", func(t *testing.T) {
		logger := &stubLogger{}
		var seen *scenario.Batch
		r := NewRunner(
			WithProbe(healthyProbe()),
			WithLogger(logger),
			WithPostHook(func(_ context.Context, _ *scenario.Spec, b *scenario.Batch) error {
				seen = b
				return fmt.Errorf("notify failed")
			}),
		)
		spec := newSpec()

		batch, err := r.Run(context.Background(), Request{
			Spec: spec, State: scenario.NewRunState(spec.ID),
		})
		require.NoError(t, err)
		assert.Same(t, batch, seen)
		assert.Contains(t, logger.Messages(), "warn:post-hook failed")
	})

	t.Run("post-hook sees sink failures", func(t *testing.T) {
		var failed []error
		r := NewRunner(
			WithProbe(healthyProbe()),
			WithSinks(&stubSink{name: "database", err: errors.New("connection refused")}),
			WithPostHook(func(_ context.Context, _ *scenario.Spec, b *scenario.Batch) error {
				failed = b.PersistErrors
				return nil
			}),
		)
		spec := newSpec()

		_, err := r.Run(context.Background(), Request{
			Spec: spec, State: scenario.NewRunState(spec.ID),
		})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Contains(t, failed[0].Error(), "connection refused")
	})
}

func TestDefaultRunner_Run_InvalidRequest(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.Run(context.Background(), Request{Spec: newSpec()})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSinkFunc(t *testing.T) {
	var got string
	s := SinkFunc{
		SinkName: "func",
		Fn: func(_ context.Context, b *scenario.Batch) error {
			got = b.ScenarioID
			return nil
		},
	}
	assert.Equal(t, "func", s.Name())
	require.NoError(t, s.Write(context.Background(), &scenario.Batch{ScenarioID: "s9"}))
	assert.Equal(t, "s9", got)
}

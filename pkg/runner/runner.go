// Package runner executes one iteration of a scenario: it probes
// every target in both directions, evaluates the results and hands
// the batch to every configured sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"digital.vasic.netprobe/pkg/evaluation"
	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/probe"
	"digital.vasic.netprobe/pkg/scenario"
)

// DefaultSinkTimeout bounds the time a batch write may take.
const DefaultSinkTimeout = 30 * time.Second

// ErrInvalidRequest is returned for a request without a spec or
// state.
var ErrInvalidRequest = errors.New("runner: request needs a spec and a state")

// Request is one iteration to execute.
type Request struct {
	Spec  *scenario.Spec
	State *scenario.RunState

	// Drain is closed when the scheduler shuts down. The runner
	// stops at the next target boundary.
	Drain <-chan struct{}
}

// Runner executes scenario iterations.
type Runner interface {
	Run(ctx context.Context, req Request) (*scenario.Batch, error)
}

// Hook is a function invoked before or after an iteration. A
// failing pre-hook aborts the iteration; post-hook failures are
// logged.
type Hook func(
	ctx context.Context,
	spec *scenario.Spec,
	batch *scenario.Batch,
) error

// DefaultRunner is the standard Runner implementation.
type DefaultRunner struct {
	probe       probe.Probe
	engine      evaluation.Engine
	sinks       []Sink
	logger      logging.Logger
	metrics     metrics.ProbeMetrics
	emitter     monitor.Emitter
	preHooks    []Hook
	postHooks   []Hook
	now         func() time.Time
	duration    time.Duration
	sinkTimeout time.Duration
}

// NewRunner creates a DefaultRunner that drives iperf3 unless
// another probe is supplied.
func NewRunner(opts ...RunnerOption) *DefaultRunner {
	r := &DefaultRunner{
		probe:       probe.NewIperf3(),
		engine:      evaluation.NewEngine(),
		logger:      logging.NullLogger{},
		metrics:     metrics.NoopMetrics{},
		emitter:     monitor.NopEmitter{},
		now:         time.Now,
		sinkTimeout: DefaultSinkTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one iteration: pre-hooks, probes (sequential per
// target, upload then download), evaluation, state update, sinks
// and post-hooks. Probe and sink failures are recorded in the batch
// and the logs; only a nil spec/state or a failing pre-hook is
// returned as an error.
//
// An iteration interrupted by Drain is partial: the results it
// produced are persisted but not evaluated. If the drain arrives
// before the first target, nothing is recorded and the iteration
// counter does not advance.
func (r *DefaultRunner) Run(
	ctx context.Context,
	req Request,
) (*scenario.Batch, error) {
	if req.Spec == nil || req.State == nil {
		return nil, ErrInvalidRequest
	}
	spec := req.Spec

	batch := &scenario.Batch{
		ScenarioID: spec.ID,
		Iteration:  req.State.NextIteration(),
		RunID:      uuid.NewString(),
		Timestamp:  r.now(),
	}

	for _, hook := range r.preHooks {
		if err := hook(ctx, spec, batch); err != nil {
			r.logEvent("pre_hook_failed", map[string]any{
				"scenario_id": spec.ID,
				"iteration":   batch.Iteration,
				"error":       err.Error(),
			})
			return batch, fmt.Errorf("pre-hook failed: %w", err)
		}
	}

	r.logEvent("run_started", map[string]any{
		"scenario_id": spec.ID,
		"iteration":   batch.Iteration,
		"run_id":      batch.RunID,
		"targets":     len(spec.Targets),
	})
	r.emit(monitor.Event{
		Type:       monitor.EventRunStarted,
		ScenarioID: spec.ID,
		Iteration:  batch.Iteration,
		RunID:      batch.RunID,
	})

	for _, target := range spec.Targets {
		if drained(req.Drain) {
			batch.Partial = true
			break
		}
		for _, dir := range []scenario.Direction{
			scenario.DirectionUpload, scenario.DirectionDownload,
		} {
			batch.Results = append(
				batch.Results, r.probeOnce(ctx, spec, batch, target, dir),
			)
		}
	}

	if batch.Partial && len(batch.Results) == 0 {
		r.logEvent("run_cancelled", map[string]any{
			"scenario_id": spec.ID,
			"iteration":   batch.Iteration,
		})
		return batch, nil
	}

	if !batch.Partial {
		r.evaluate(spec, req.State, batch)
	}

	req.State.Complete(batch.Iteration, batch.Results, batch.Timestamp)

	batch.PersistErrors = r.persist(ctx, batch)

	for _, hook := range r.postHooks {
		if err := hook(ctx, spec, batch); err != nil {
			r.logger.Warn("post-hook failed",
				logging.StringField("scenario_id", spec.ID),
				logging.ErrorField(err),
			)
		}
	}

	elapsed := r.now().Sub(batch.Timestamp)
	r.metrics.RecordRun(spec.ID, batch.Partial, elapsed)

	event := monitor.EventRunCompleted
	name := "run_completed"
	if batch.Partial {
		event = monitor.EventRunPartial
		name = "run_partial"
	}
	r.logEvent(name, map[string]any{
		"scenario_id":      spec.ID,
		"iteration":        batch.Iteration,
		"run_id":           batch.RunID,
		"results":          len(batch.Results),
		"records":          len(batch.Records) + len(batch.ScenarioRecords),
		"success_rate":     batch.SuccessRate(),
		"duration_seconds": elapsed.Seconds(),
	})
	r.emit(monitor.Event{
		Type:       event,
		ScenarioID: spec.ID,
		Iteration:  batch.Iteration,
		RunID:      batch.RunID,
		Duration:   elapsed,
	})

	return batch, nil
}

// probeOnce runs a single probe and converts its outcome into a
// RunResult. It never fails: errors become the result's status.
func (r *DefaultRunner) probeOnce(
	ctx context.Context,
	spec *scenario.Spec,
	batch *scenario.Batch,
	target scenario.Target,
	dir scenario.Direction,
) scenario.RunResult {
	req := probe.Request{
		ScenarioID: spec.ID,
		Target:     target,
		Direction:  dir,
		Duration:   r.probeDuration(spec),
		Bandwidth:  spec.Parameters.Uplink,
	}
	if dir == scenario.DirectionDownload {
		req.Bandwidth = spec.Parameters.Downlink
	}

	started := r.now()
	m, err := r.probe.Run(ctx, req)
	elapsed := r.now().Sub(started)

	res := probe.Result(req, m, err)
	res.Iteration = batch.Iteration
	res.RunID = batch.RunID
	res.Timestamp = batch.Timestamp

	r.metrics.RecordProbe(
		spec.ID, string(dir), res.Status, elapsed, res.Mbps,
	)
	r.emit(monitor.Event{
		Type:       monitor.EventTargetCompleted,
		ScenarioID: spec.ID,
		Iteration:  batch.Iteration,
		RunID:      batch.RunID,
		Target:     target.String(),
		Direction:  string(dir),
		Status:     res.Status,
		Mbps:       res.Mbps,
		Message:    res.Error,
		Duration:   elapsed,
	})

	if err != nil {
		r.logger.Warn("probe failed",
			logging.StringField("scenario_id", spec.ID),
			logging.IntField("iteration", batch.Iteration),
			logging.StringField("target", target.String()),
			logging.StringField("direction", string(dir)),
			logging.StringField("status", res.Status),
			logging.ErrorField(err),
		)
		return res
	}
	r.logEvent("target_completed", map[string]any{
		"scenario_id": spec.ID,
		"iteration":   batch.Iteration,
		"target":      target.String(),
		"direction":   string(dir),
		"mbps":        res.Mbps,
	})
	return res
}

func (r *DefaultRunner) probeDuration(spec *scenario.Spec) time.Duration {
	if r.duration > 0 {
		return r.duration
	}
	secs := spec.Parameters.Duration
	if secs <= 0 {
		secs = scenario.DefaultDuration
	}
	return time.Duration(secs) * time.Second
}

// evaluate judges the batch against the scenario's expectations.
// History is the state's history plus this iteration's successes.
func (r *DefaultRunner) evaluate(
	spec *scenario.Spec,
	state *scenario.RunState,
	batch *scenario.Batch,
) {
	history := state.History()
	for _, res := range batch.Results {
		if res.Succeeded() {
			history = append(history, res)
		}
	}

	outcome := r.engine.Evaluate(evaluation.Input{
		ScenarioID:   spec.ID,
		Iteration:    batch.Iteration,
		Timestamp:    batch.Timestamp,
		Expectations: spec.Expectations,
		Results:      batch.Results,
		History:      history,
	})
	outcome.Apply(batch)

	for _, set := range [][]scenario.EvaluationRecord{
		batch.Records, batch.ScenarioRecords,
	} {
		for _, rec := range set {
			r.metrics.RecordEvaluation(
				spec.ID, string(rec.Metric), string(rec.Scope), rec.Passed,
			)
			r.emit(monitor.Event{
				Type:       monitor.EventVerdict,
				ScenarioID: spec.ID,
				Iteration:  batch.Iteration,
				RunID:      batch.RunID,
				Target:     rec.TestIndex,
				Metric:     string(rec.Metric),
				Scope:      string(rec.Scope),
				Verdict:    rec.Verdict,
				Mbps:       rec.Actual,
			})
		}
	}

	for i := range batch.Skipped {
		skip := &batch.Skipped[i]
		r.logger.Warn(skip.Error(),
			logging.StringField("scenario_id", spec.ID),
			logging.IntField("iteration", batch.Iteration),
			logging.StringField("metric", string(skip.Metric)),
			logging.StringField("scope", string(skip.Scope)),
			logging.StringField("aggregation", skip.Aggregation),
		)
		r.metrics.RecordInsufficientData(
			spec.ID, string(skip.Metric), string(skip.Scope),
		)
		r.emit(monitor.Event{
			Type:       monitor.EventInsufficient,
			ScenarioID: spec.ID,
			Iteration:  batch.Iteration,
			RunID:      batch.RunID,
			Metric:     string(skip.Metric),
			Scope:      string(skip.Scope),
			Message:    skip.Error(),
		})
	}

	for _, err := range outcome.Errors {
		r.logger.Error("evaluation error",
			logging.StringField("scenario_id", spec.ID),
			logging.IntField("iteration", batch.Iteration),
			logging.ErrorField(err),
		)
	}
}

// persist writes the batch to every sink concurrently. A failing
// sink does not stop the others. Writes survive cancellation of
// ctx so that a shutdown still records the iteration.
func (r *DefaultRunner) persist(
	ctx context.Context,
	batch *scenario.Batch,
) []error {
	if len(r.sinks) == 0 {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), r.sinkTimeout,
	)
	defer cancel()

	errs := make([]*scenario.PersistenceError, len(r.sinks))
	var g errgroup.Group
	for i, sink := range r.sinks {
		g.Go(func() error {
			if err := sink.Write(writeCtx, batch); err != nil {
				errs[i] = &scenario.PersistenceError{
					Sink: sink.Name(), Err: err,
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, pe := range errs {
		if pe == nil {
			continue
		}
		failed = append(failed, pe)
		r.logger.Warn("sink write failed",
			logging.StringField("scenario_id", batch.ScenarioID),
			logging.IntField("iteration", batch.Iteration),
			logging.StringField("sink", pe.Sink),
			logging.ErrorField(pe),
		)
		r.metrics.RecordPersistenceFailure(pe.Sink)
		r.emit(monitor.Event{
			Type:       monitor.EventPersistFailed,
			ScenarioID: batch.ScenarioID,
			Iteration:  batch.Iteration,
			RunID:      batch.RunID,
			Message:    pe.Error(),
		})
	}
	return failed
}

func (r *DefaultRunner) emit(event monitor.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	r.emitter.Emit(event)
}

// logEvent emits a structured log entry.
func (r *DefaultRunner) logEvent(
	event string,
	data map[string]any,
) {
	r.logger.Info(event, logging.FieldsFromMap(data)...)
}

func drained(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

package runner

import (
	"time"

	"digital.vasic.netprobe/pkg/evaluation"
	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/probe"
)

// RunnerOption configures a DefaultRunner.
type RunnerOption func(*DefaultRunner)

// WithProbe sets the probe used for every target.
func WithProbe(p probe.Probe) RunnerOption {
	return func(r *DefaultRunner) {
		r.probe = p
	}
}

// WithEngine sets the evaluation engine.
func WithEngine(e evaluation.Engine) RunnerOption {
	return func(r *DefaultRunner) {
		r.engine = e
	}
}

// WithSinks appends batch sinks.
func WithSinks(sinks ...Sink) RunnerOption {
	return func(r *DefaultRunner) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// WithLogger sets the logger used by the runner.
func WithLogger(logger logging.Logger) RunnerOption {
	return func(r *DefaultRunner) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.ProbeMetrics) RunnerOption {
	return func(r *DefaultRunner) {
		r.metrics = m
	}
}

// WithEmitter sets the monitor event emitter.
func WithEmitter(e monitor.Emitter) RunnerOption {
	return func(r *DefaultRunner) {
		r.emitter = e
	}
}

// WithPreHook adds a hook run before the first probe.
func WithPreHook(h Hook) RunnerOption {
	return func(r *DefaultRunner) {
		r.preHooks = append(r.preHooks, h)
	}
}

// WithPostHook adds a hook run after the sinks.
func WithPostHook(h Hook) RunnerOption {
	return func(r *DefaultRunner) {
		r.postHooks = append(r.postHooks, h)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *DefaultRunner) {
		r.now = now
	}
}

// WithProbeDuration overrides every scenario's per-direction test
// length.
func WithProbeDuration(d time.Duration) RunnerOption {
	return func(r *DefaultRunner) {
		r.duration = d
	}
}

// WithSinkTimeout bounds each batch write.
func WithSinkTimeout(d time.Duration) RunnerOption {
	return func(r *DefaultRunner) {
		if d > 0 {
			r.sinkTimeout = d
		}
	}
}

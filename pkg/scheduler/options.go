package scheduler

import (
	"time"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/statestore"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithMetrics sets the metrics recorder used for the active-runs
// gauge.
func WithMetrics(m metrics.ProbeMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithEmitter sets the monitor event emitter.
func WithEmitter(e monitor.Emitter) Option {
	return func(s *Scheduler) {
		s.emitter = e
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithTick sets how often due-ness is recomputed.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithGrace sets how long Stop waits for in-flight runs before
// cancelling their probes.
func WithGrace(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithStateStore restores and saves run state through st.
func WithStateStore(st statestore.Store) Option {
	return func(s *Scheduler) {
		s.store = st
	}
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netprobe"

// PrometheusMetrics implements ProbeMetrics with client_golang
// collectors registered on a private registry.
type PrometheusMetrics struct {
	registry      *prometheus.Registry
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	throughput    *prometheus.GaugeVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	evaluations   *prometheus.CounterVec
	insufficient  *prometheus.CounterVec
	persistFailed *prometheus.CounterVec
	active        prometheus.Gauge
}

// NewPrometheusMetrics creates the collectors and registers them
// on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probe invocations by outcome.",
		}, []string{"scenario_id", "direction", "status"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of probe invocations.",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120},
		}, []string{"scenario_id", "direction"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_mbps",
			Help:      "Last successful throughput measurement.",
		}, []string{"scenario_id", "direction"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished iterations.",
		}, []string{"scenario_id", "partial"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of iterations.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		}, []string{"scenario_id"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Judged expectations by verdict.",
		}, []string{"scenario_id", "metric", "scope", "verdict"}),
		insufficient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_data_total",
			Help:      "Expectations skipped for lack of samples.",
		}, []string{"scenario_id", "metric", "scope"}),
		persistFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Sink write failures.",
		}, []string{"sink"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Iterations currently in flight.",
		}),
	}

	m.registry.MustRegister(
		m.probes, m.probeDuration, m.throughput,
		m.runs, m.runDuration, m.evaluations,
		m.insufficient, m.persistFailed, m.active,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordProbe counts a probe and observes its duration. Successful
// probes also set the throughput gauge.
func (m *PrometheusMetrics) RecordProbe(
	scenarioID, direction, status string,
	duration time.Duration, mbps float64,
) {
	m.probes.WithLabelValues(scenarioID, direction, status).Inc()
	m.probeDuration.WithLabelValues(scenarioID, direction).
		Observe(duration.Seconds())
	if status == "success" {
		m.throughput.WithLabelValues(scenarioID, direction).Set(mbps)
	}
}

// RecordRun observes an iteration duration.
func (m *PrometheusMetrics) RecordRun(
	scenarioID string, partial bool, duration time.Duration,
) {
	p := "false"
	if partial {
		p = "true"
	}
	m.runs.WithLabelValues(scenarioID, p).Inc()
	m.runDuration.WithLabelValues(scenarioID).Observe(duration.Seconds())
}

// RecordEvaluation increments the verdict counter.
func (m *PrometheusMetrics) RecordEvaluation(
	scenarioID, metric, scope string, passed bool,
) {
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	m.evaluations.WithLabelValues(scenarioID, metric, scope, verdict).Inc()
}

// RecordInsufficientData increments the skipped expectation counter.
func (m *PrometheusMetrics) RecordInsufficientData(
	scenarioID, metric, scope string,
) {
	m.insufficient.WithLabelValues(scenarioID, metric, scope).Inc()
}

// RecordPersistenceFailure increments the sink failure counter.
func (m *PrometheusMetrics) RecordPersistenceFailure(sink string) {
	m.persistFailed.WithLabelValues(sink).Inc()
}

// SetActiveRuns sets the in-flight runs gauge.
func (m *PrometheusMetrics) SetActiveRuns(count int) {
	m.active.Set(float64(count))
}

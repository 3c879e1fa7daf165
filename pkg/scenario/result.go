package scenario

import (
	"strconv"
	"time"
)

// Status constants for a single probe invocation.
const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusTimeout    = "timeout"
	StatusParseError = "parse_error"
	StatusError      = "error"
)

// Direction is the transfer direction of one probe invocation.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Metric returns the metric measured in this direction.
func (d Direction) Metric() Metric {
	if d == DirectionDownload {
		return MetricDownloadSpeed
	}
	return MetricUploadSpeed
}

// RunResult is the outcome of one (scenario, iteration, target,
// direction) probe invocation. It is immutable once created.
type RunResult struct {
	// ScenarioID correlates the result with its scenario.
	ScenarioID string `json:"scenario_id"`

	// Iteration is the 1-based iteration number.
	Iteration int `json:"iteration"`

	// RunID identifies the iteration across sinks.
	RunID string `json:"run_id"`

	// Timestamp is when the iteration started.
	Timestamp time.Time `json:"timestamp"`

	// Target is the probed endpoint.
	Target Target `json:"target"`

	// Direction is upload or download.
	Direction Direction `json:"test_type"`

	// Status is one of the Status* constants.
	Status string `json:"status"`

	// Mbps is BitsPerSecond / 1e6 rounded to two decimals.
	Mbps float64 `json:"mbps"`

	// BitsPerSecond is the raw measured rate.
	BitsPerSecond float64 `json:"bits_per_second"`

	// Bytes is the number of bytes transferred.
	Bytes int64 `json:"bytes"`

	// Retransmits is reported for uploads only.
	Retransmits int `json:"retransmits"`

	// JitterMs is reported for downloads only.
	JitterMs float64 `json:"jitter_ms"`

	// Error describes why a non-successful invocation failed.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the result carries a usable sample.
func (r RunResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Verdict labels.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// IterationAll labels records that span every iteration.
const IterationAll = "all"

// Test index labels for aggregated records.
const (
	TestIndexAll      = "all"
	TestIndexScenario = "scenario"
)

// IterationLabel formats an iteration number for records.
func IterationLabel(n int) string {
	return strconv.Itoa(n)
}

// EvaluationRecord is one judged expectation instance. Records are
// never mutated after creation.
type EvaluationRecord struct {
	ScenarioID  string    `json:"scenario_id"`
	Iteration   string    `json:"iteration"`
	Timestamp   time.Time `json:"timestamp"`
	Metric      Metric    `json:"metric"`
	Operator    string    `json:"operator"`
	Expected    Values    `json:"expected_value"`
	Actual      float64   `json:"actual_value"`
	Unit        string    `json:"unit"`
	Aggregation string    `json:"aggregation"`
	Scope       Scope     `json:"evaluation_scope"`
	TestIndex   string    `json:"test_index"`
	SampleCount int       `json:"sample_count"`
	Passed      bool      `json:"passed"`
	Verdict     string    `json:"verdict"`
}

// VerdictFor maps a boolean outcome to its verdict label.
func VerdictFor(passed bool) string {
	if passed {
		return VerdictPass
	}
	return VerdictFail
}

// AggregateRow is one entry of the aggregation-metrics table:
// a statistic computed over a scenario's full history.
type AggregateRow struct {
	ScenarioID  string    `json:"scenario_id"`
	Timestamp   time.Time `json:"timestamp"`
	Metric      Metric    `json:"metric"`
	Aggregation string    `json:"aggregation"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	SampleCount int       `json:"sample_count"`
}

// Batch is everything one iteration produced, handed to every sink.
type Batch struct {
	ScenarioID string    `json:"scenario_id"`
	Iteration  int       `json:"iteration"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`

	// Partial is set when shutdown interrupted the iteration.
	// Partial batches carry results but no evaluations.
	Partial bool `json:"partial"`

	Results []RunResult `json:"results"`

	// Records holds per_iteration, overall and windowed records.
	Records []EvaluationRecord `json:"records"`

	// ScenarioRecords replaces any earlier scenario-scope
	// records for this scenario.
	ScenarioRecords []EvaluationRecord `json:"scenario_records"`

	// Aggregates is the full aggregation table over history.
	Aggregates []AggregateRow `json:"aggregates"`

	// Skipped lists expectations that had no samples.
	Skipped []InsufficientDataError `json:"skipped,omitempty"`

	// PersistErrors holds one *PersistenceError per sink that
	// failed to store the batch. It is filled in after every sink
	// has been written, so only post-hooks see it.
	PersistErrors []error `json:"-"`
}

// SuccessRate returns the fraction of passed records across
// Records and ScenarioRecords, or 0 when nothing was judged.
func (b *Batch) SuccessRate() float64 {
	total, passed := 0, 0
	for _, set := range [][]EvaluationRecord{
		b.Records, b.ScenarioRecords,
	} {
		for _, r := range set {
			total++
			if r.Passed {
				passed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}

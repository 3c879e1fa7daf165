package report

import (
	"io"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// JSONReporter generates JSON iteration reports.
type JSONReporter struct {
	pretty bool
}

// NewJSONReporter creates a new JSON reporter. When pretty is
// true, output is indented for readability.
func NewJSONReporter(pretty bool) *JSONReporter {
	return &JSONReporter{pretty: pretty}
}

// IterationReport is the JSON document written per batch.
type IterationReport struct {
	ScenarioID      string                           `json:"scenario_id"`
	Iteration       int                              `json:"iteration"`
	RunID           string                           `json:"run_id"`
	Timestamp       time.Time                        `json:"timestamp"`
	Partial         bool                             `json:"partial"`
	Summary         IterationSummary                 `json:"summary"`
	Results         []scenario.RunResult             `json:"results"`
	Records         []scenario.EvaluationRecord      `json:"evaluations"`
	ScenarioRecords []scenario.EvaluationRecord      `json:"scenario_evaluations,omitempty"`
	Aggregates      []scenario.AggregateRow          `json:"aggregation_metrics,omitempty"`
	Skipped         []scenario.InsufficientDataError `json:"insufficient_data,omitempty"`
}

// IterationSummary counts the outcomes of one batch.
type IterationSummary struct {
	Probes       int     `json:"probes"`
	Successful   int     `json:"successful"`
	Failed       int     `json:"failed"`
	Evaluations  int     `json:"evaluations"`
	Passed       int     `json:"passed"`
	SuccessRate  float64 `json:"success_rate"`
	Insufficient int     `json:"insufficient_data"`
}

// Summarize counts probes and verdicts in a batch.
func Summarize(batch *scenario.Batch) IterationSummary {
	s := IterationSummary{
		Probes:       len(batch.Results),
		Insufficient: len(batch.Skipped),
		SuccessRate:  batch.SuccessRate(),
	}
	for _, r := range batch.Results {
		if r.Succeeded() {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	for _, set := range [][]scenario.EvaluationRecord{
		batch.Records, batch.ScenarioRecords,
	} {
		for _, rec := range set {
			s.Evaluations++
			if rec.Passed {
				s.Passed++
			}
		}
	}
	return s
}

// GenerateReport creates a JSON report for a single batch.
func (r *JSONReporter) GenerateReport(
	batch *scenario.Batch,
) ([]byte, error) {
	doc := IterationReport{
		ScenarioID:      batch.ScenarioID,
		Iteration:       batch.Iteration,
		RunID:           batch.RunID,
		Timestamp:       batch.Timestamp,
		Partial:         batch.Partial,
		Summary:         Summarize(batch),
		Results:         batch.Results,
		Records:         batch.Records,
		ScenarioRecords: batch.ScenarioRecords,
		Aggregates:      batch.Aggregates,
		Skipped:         batch.Skipped,
	}
	if r.pretty {
		return jsonMarshalIndent(doc, "", "  ")
	}
	return jsonMarshal(doc)
}

// WriteReport writes a JSON report to the specified writer.
func (r *JSONReporter) WriteReport(
	w io.Writer,
	batch *scenario.Batch,
) error {
	data, err := r.GenerateReport(batch)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

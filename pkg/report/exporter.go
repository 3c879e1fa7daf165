package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// DefaultReportPath is used when global_settings.report_path is
// unset.
const DefaultReportPath = "./results/speed_test/"

// File names inside the report directory.
const (
	HistoryFile   = "history.jsonl"
	IterationsDir = "iterations"
)

// Exporter writes every batch to the report directory:
//
//   - {id}_evaluations.csv, appended
//   - {id}_scenario_summary.csv, overwritten
//   - {id}_aggregation_metrics.csv, overwritten
//   - speed_test_results_YYYYMMDD_HHMMSS.csv, raw results
//   - history.jsonl, one line per batch
//   - iterations/{id}_iteration_NNNN.json
//
// Writes are serialized, so one Exporter can serve every scenario.
type Exporter struct {
	dir      string
	reporter *JSONReporter
	summary  *SummaryBuilder
	now      func() time.Time

	mu sync.Mutex
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithClock overrides time.Now for the session summary.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		e.now = now
	}
}

// WithPrettyJSON indents iteration reports.
func WithPrettyJSON(pretty bool) ExporterOption {
	return func(e *Exporter) {
		e.reporter = NewJSONReporter(pretty)
	}
}

// NewExporter creates the report directory and an Exporter writing
// into it.
func NewExporter(dir string, opts ...ExporterOption) (*Exporter, error) {
	if dir == "" {
		dir = DefaultReportPath
	}
	e := &Exporter{
		dir:      dir,
		reporter: NewJSONReporter(true),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.summary = NewSummaryBuilder(e.now())

	if err := os.MkdirAll(filepath.Join(dir, IterationsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return e, nil
}

// Name identifies the sink in logs and metrics.
func (e *Exporter) Name() string { return "files" }

// Dir returns the report directory.
func (e *Exporter) Dir() string { return e.dir }

// Write exports one batch. Every file is attempted; the errors of
// the ones that failed are joined.
func (e *Exporter) Write(ctx context.Context, batch *scenario.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	id := batch.ScenarioID

	if len(batch.Records) > 0 {
		rows := make([][]string, len(batch.Records))
		for i, r := range batch.Records {
			rows[i] = evaluationRow(r)
		}
		errs = append(errs, appendCSV(
			e.path(id+"_evaluations.csv"), EvaluationColumns, rows,
		))
	}

	if len(batch.ScenarioRecords) > 0 {
		rows := make([][]string, len(batch.ScenarioRecords))
		for i, r := range batch.ScenarioRecords {
			rows[i] = scenarioSummaryRow(r)
		}
		errs = append(errs, writeCSV(
			e.path(id+"_scenario_summary.csv"), ScenarioSummaryColumns, rows,
		))
	}

	if len(batch.Aggregates) > 0 {
		rows := make([][]string, len(batch.Aggregates))
		for i, r := range batch.Aggregates {
			rows[i] = aggregationRow(r)
		}
		errs = append(errs, writeCSV(
			e.path(id+"_aggregation_metrics.csv"), AggregationColumns, rows,
		))
	}

	if len(batch.Results) > 0 {
		rows := make([][]string, len(batch.Results))
		for i, r := range batch.Results {
			rows[i] = resultRow(r)
		}
		errs = append(errs, appendCSV(
			e.path(ResultsFileName(batch.Timestamp)), ResultColumns, rows,
		))
	}

	reportPath, err := e.writeIterationReport(batch)
	errs = append(errs, err)

	errs = append(errs, AppendToHistory(
		e.path(HistoryFile), batch, reportPath,
	))

	e.summary.Add(batch)
	return errors.Join(errs...)
}

func (e *Exporter) writeIterationReport(batch *scenario.Batch) (string, error) {
	data, err := e.reporter.GenerateReport(batch)
	if err != nil {
		return "", fmt.Errorf("failed to render iteration report: %w", err)
	}
	path := filepath.Join(e.dir, IterationsDir, fmt.Sprintf(
		"%s_iteration_%04d.json", batch.ScenarioID, batch.Iteration,
	))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write iteration report: %w", err)
	}
	return path, nil
}

// Close writes the session summary if anything was exported.
func (e *Exporter) Close() error {
	if e.summary.Empty() {
		return nil
	}
	return SaveSessionSummary(e.summary.Build(e.now()), e.dir)
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.dir, name)
}

// ResultsFileName names the raw results table for a batch started
// at t.
func ResultsFileName(t time.Time) string {
	return fmt.Sprintf("speed_test_results_%s.csv", t.Format("20060102_150405"))
}

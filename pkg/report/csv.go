package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// Column layouts of the exported tables.
var (
	EvaluationColumns = []string{
		"scenario_id", "timestamp", "iteration", "metric", "operator",
		"expected_value", "actual_value", "unit", "evaluation_scope",
		"aggregation", "test_index", "sample_count", "passed", "verdict",
	}
	ScenarioSummaryColumns = []string{
		"scenario_id", "timestamp", "metric", "aggregation", "actual_value",
		"operator", "expected_value", "unit", "sample_count", "passed", "verdict",
	}
	AggregationColumns = []string{
		"scenario_id", "timestamp", "metric", "aggregation", "value", "unit",
	}
	ResultColumns = []string{
		"timestamp", "scenario_id", "iteration", "server_type", "server", "port",
		"test_type", "status", "mbps", "bits_per_second", "bytes",
		"retransmits", "jitter_ms", "error", "run_id",
	}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func evaluationRow(r scenario.EvaluationRecord) []string {
	return []string{
		r.ScenarioID, formatTime(r.Timestamp), r.Iteration,
		string(r.Metric), r.Operator, r.Expected.String(),
		formatFloat(r.Actual), r.Unit, string(r.Scope),
		r.Aggregation, r.TestIndex, strconv.Itoa(r.SampleCount),
		strconv.FormatBool(r.Passed), r.Verdict,
	}
}

func scenarioSummaryRow(r scenario.EvaluationRecord) []string {
	return []string{
		r.ScenarioID, formatTime(r.Timestamp), string(r.Metric),
		r.Aggregation, formatFloat(r.Actual), r.Operator,
		r.Expected.String(), r.Unit, strconv.Itoa(r.SampleCount),
		strconv.FormatBool(r.Passed), r.Verdict,
	}
}

func aggregationRow(r scenario.AggregateRow) []string {
	return []string{
		r.ScenarioID, formatTime(r.Timestamp), string(r.Metric),
		r.Aggregation, formatFloat(r.Value), r.Unit,
	}
}

func resultRow(r scenario.RunResult) []string {
	return []string{
		formatTime(r.Timestamp), r.ScenarioID, strconv.Itoa(r.Iteration),
		string(r.Target.Role), r.Target.Host, strconv.Itoa(r.Target.Port),
		string(r.Direction), r.Status, formatFloat(r.Mbps),
		formatFloat(r.BitsPerSecond), strconv.FormatInt(r.Bytes, 10),
		strconv.Itoa(r.Retransmits), formatFloat(r.JitterMs), r.Error,
		r.RunID,
	}
}

// appendCSV appends rows to path, writing the header first when the
// file is new or empty.
func appendCSV(path string, header []string, rows [][]string) error {
	file, err := os.OpenFile(
		path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeCSV replaces path with the header and rows.
func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

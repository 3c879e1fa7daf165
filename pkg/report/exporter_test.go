package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := NewExporter(
		t.TempDir(),
		WithClock(func() time.Time { return testTime.Add(time.Hour) }),
	)
	require.NoError(t, err)
	return e
}

func TestExporter_Name(t *testing.T) {
	assert.Equal(t, "files", newTestExporter(t).Name())
}

func TestNewExporter_CreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "speed_test")
	e, err := NewExporter(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, e.Dir())
	assert.DirExists(t, filepath.Join(dir, IterationsDir))
}

func TestExporter_Write(t *testing.T) {
	e := newTestExporter(t)
	batch := makeTestBatch()

	require.NoError(t, e.Write(context.Background(), batch))

	evaluations := readCSV(t, filepath.Join(e.Dir(), "office-link_evaluations.csv"))
	require.Len(t, evaluations, 3)
	assert.Equal(t, EvaluationColumns, evaluations[0])

	summary := readCSV(t, filepath.Join(e.Dir(), "office-link_scenario_summary.csv"))
	require.Len(t, summary, 2)
	assert.Equal(t, "p50", summary[1][3])

	aggregates := readCSV(t, filepath.Join(e.Dir(), "office-link_aggregation_metrics.csv"))
	require.Len(t, aggregates, 2)
	assert.Equal(t, "90.25", aggregates[1][4])

	results := readCSV(t, filepath.Join(e.Dir(), "speed_test_results_20260101_100000.csv"))
	require.Len(t, results, 4)
	assert.Equal(t, ResultColumns, results[0])

	reportPath := filepath.Join(e.Dir(), IterationsDir, "office-link_iteration_0003.json")
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var doc IterationReport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.Iteration)

	history := readHistory(t, filepath.Join(e.Dir(), HistoryFile))
	require.Len(t, history, 1)
	assert.Equal(t, reportPath, history[0].ReportPath)
}

func TestExporter_Write_AppendsAndReplaces(t *testing.T) {
	e := newTestExporter(t)

	first := makeTestBatch()
	require.NoError(t, e.Write(context.Background(), first))

	second := makeTestBatch()
	second.Iteration = 4
	second.ScenarioRecords[0].Actual = 70
	second.ScenarioRecords[0].Passed = false
	require.NoError(t, e.Write(context.Background(), second))

	evaluations := readCSV(t, filepath.Join(e.Dir(), "office-link_evaluations.csv"))
	assert.Len(t, evaluations, 5)

	summary := readCSV(t, filepath.Join(e.Dir(), "office-link_scenario_summary.csv"))
	require.Len(t, summary, 2)
	assert.Equal(t, "70", summary[1][4])
	assert.Equal(t, "false", summary[1][9])

	// Same start second, so both batches share one results table.
	results := readCSV(t, filepath.Join(e.Dir(), "speed_test_results_20260101_100000.csv"))
	assert.Len(t, results, 7)

	assert.Len(t, readHistory(t, filepath.Join(e.Dir(), HistoryFile)), 2)
}

func TestExporter_Write_PartialBatch(t *testing.T) {
	e := newTestExporter(t)
	batch := makeTestBatch()
	batch.Partial = true
	batch.Records = nil
	batch.ScenarioRecords = nil
	batch.Aggregates = nil

	require.NoError(t, e.Write(context.Background(), batch))

	assert.NoFileExists(t, filepath.Join(e.Dir(), "office-link_evaluations.csv"))
	assert.NoFileExists(t, filepath.Join(e.Dir(), "office-link_scenario_summary.csv"))
	assert.FileExists(t, filepath.Join(e.Dir(), "speed_test_results_20260101_100000.csv"))

	history := readHistory(t, filepath.Join(e.Dir(), HistoryFile))
	require.Len(t, history, 1)
	assert.True(t, history[0].Partial)
}

func TestExporter_Write_CancelledContext(t *testing.T) {
	e := newTestExporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Write(ctx, makeTestBatch())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(e.Dir(), HistoryFile))
}

func TestExporter_Write_ReportsFailures(t *testing.T) {
	e := newTestExporter(t)
	require.NoError(t, os.RemoveAll(filepath.Join(e.Dir(), IterationsDir)))

	err := e.Write(context.Background(), makeTestBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write iteration report")

	// The remaining files are still written.
	assert.FileExists(t, filepath.Join(e.Dir(), "office-link_evaluations.csv"))
	history := readHistory(t, filepath.Join(e.Dir(), HistoryFile))
	require.Len(t, history, 1)
	assert.Empty(t, history[0].ReportPath)
}

func TestExporter_Close(t *testing.T) {
	e := newTestExporter(t)
	require.NoError(t, e.Close())
	assert.NoFileExists(t, filepath.Join(e.Dir(), "session_summary_20260101_110000.json"))

	require.NoError(t, e.Write(context.Background(), makeTestBatch()))
	require.NoError(t, e.Close())
	assert.FileExists(t, filepath.Join(e.Dir(), "session_summary_20260101_110000.json"))
	assert.FileExists(t, filepath.Join(e.Dir(), "session_summary_20260101_110000.md"))
}

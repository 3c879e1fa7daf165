package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// Injectable for tests.
var (
	jsonMarshal       = json.Marshal
	jsonMarshalIndent = json.MarshalIndent
)

// HistoricalEntry represents one iteration in the run history.
type HistoricalEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	ScenarioID  string    `json:"scenario_id"`
	Iteration   int       `json:"iteration"`
	RunID       string    `json:"run_id"`
	Partial     bool      `json:"partial"`
	Probes      int       `json:"probes"`
	Successful  int       `json:"successful"`
	Evaluations int       `json:"evaluations"`
	Passed      int       `json:"passed"`
	SuccessRate float64   `json:"success_rate"`
	ReportPath  string    `json:"report_path,omitempty"`
}

// AppendToHistory adds an entry for batch to the history log at
// historyPath. Each entry is a single JSON line.
func AppendToHistory(
	historyPath string,
	batch *scenario.Batch,
	reportPath string,
) error {
	s := Summarize(batch)
	entry := HistoricalEntry{
		Timestamp:   batch.Timestamp,
		ScenarioID:  batch.ScenarioID,
		Iteration:   batch.Iteration,
		RunID:       batch.RunID,
		Partial:     batch.Partial,
		Probes:      s.Probes,
		Successful:  s.Successful,
		Evaluations: s.Evaluations,
		Passed:      s.Passed,
		SuccessRate: s.SuccessRate,
		ReportPath:  reportPath,
	}

	data, err := jsonMarshal(entry)
	if err != nil {
		return fmt.Errorf(
			"failed to marshal history entry: %w", err,
		)
	}

	file, err := os.OpenFile(
		historyPath,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0644,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to open history file: %w", err,
		)
	}
	defer func() { _ = file.Close() }()

	_, err = fmt.Fprintln(file, string(data))
	return err
}

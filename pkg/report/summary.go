package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// SessionSummary aggregates every batch exported during one daemon
// session.
type SessionSummary struct {
	ID              string            `json:"id"`
	StartedAt       time.Time         `json:"started_at"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Scenarios       []ScenarioSummary `json:"scenarios"`
	Iterations      int               `json:"iterations"`
	Evaluations     int               `json:"evaluations"`
	Passed          int               `json:"passed"`
	OverallPassRate float64           `json:"overall_pass_rate"`
}

// ScenarioSummary represents the session totals of one scenario.
type ScenarioSummary struct {
	ScenarioID    string    `json:"scenario_id"`
	Iterations    int       `json:"iterations"`
	Partial       int       `json:"partial"`
	Probes        int       `json:"probes"`
	FailedProbes  int       `json:"failed_probes"`
	Evaluations   int       `json:"evaluations"`
	Passed        int       `json:"passed"`
	PassRate      float64   `json:"pass_rate"`
	LastIteration int       `json:"last_iteration"`
	LastRun       time.Time `json:"last_run"`
}

// SummaryBuilder accumulates batches into a SessionSummary. It is
// safe for concurrent use.
type SummaryBuilder struct {
	mu        sync.Mutex
	startedAt time.Time
	scenarios map[string]*ScenarioSummary
}

// NewSummaryBuilder starts a session at startedAt.
func NewSummaryBuilder(startedAt time.Time) *SummaryBuilder {
	return &SummaryBuilder{
		startedAt: startedAt,
		scenarios: make(map[string]*ScenarioSummary),
	}
}

// Add folds a batch into the session totals.
func (b *SummaryBuilder) Add(batch *scenario.Batch) {
	s := Summarize(batch)

	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.scenarios[batch.ScenarioID]
	if !ok {
		cs = &ScenarioSummary{ScenarioID: batch.ScenarioID}
		b.scenarios[batch.ScenarioID] = cs
	}
	cs.Iterations++
	if batch.Partial {
		cs.Partial++
	}
	cs.Probes += s.Probes
	cs.FailedProbes += s.Failed
	cs.Evaluations += s.Evaluations
	cs.Passed += s.Passed
	if cs.Evaluations > 0 {
		cs.PassRate = float64(cs.Passed) / float64(cs.Evaluations)
	}
	if batch.Iteration > cs.LastIteration {
		cs.LastIteration = batch.Iteration
	}
	if batch.Timestamp.After(cs.LastRun) {
		cs.LastRun = batch.Timestamp
	}
}

// Empty reports whether no batch has been added.
func (b *SummaryBuilder) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.scenarios) == 0
}

// Build returns the session summary with scenarios sorted by ID.
func (b *SummaryBuilder) Build(now time.Time) *SessionSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	summary := &SessionSummary{
		ID:          fmt.Sprintf("session_%s", now.Format("20060102_150405")),
		StartedAt:   b.startedAt,
		GeneratedAt: now,
		Scenarios:   make([]ScenarioSummary, 0, len(b.scenarios)),
	}
	for _, cs := range b.scenarios {
		summary.Scenarios = append(summary.Scenarios, *cs)
		summary.Iterations += cs.Iterations
		summary.Evaluations += cs.Evaluations
		summary.Passed += cs.Passed
	}
	sort.Slice(summary.Scenarios, func(i, j int) bool {
		return summary.Scenarios[i].ScenarioID < summary.Scenarios[j].ScenarioID
	})
	if summary.Evaluations > 0 {
		summary.OverallPassRate =
			float64(summary.Passed) / float64(summary.Evaluations)
	}
	return summary
}

// SaveSessionSummary saves the summary to both JSON and Markdown
// files in outputDir, and points latest_summary.* at them.
func SaveSessionSummary(
	summary *SessionSummary,
	outputDir string,
) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf(
			"failed to create output directory: %w", err,
		)
	}

	ts := summary.GeneratedAt.Format("20060102_150405")

	jsonPath := filepath.Join(
		outputDir, fmt.Sprintf("session_summary_%s.json", ts),
	)
	jsonData, err := jsonMarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf(
			"failed to marshal summary: %w", err,
		)
	}
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return fmt.Errorf(
			"failed to write JSON summary: %w", err,
		)
	}

	mdPath := filepath.Join(
		outputDir, fmt.Sprintf("session_summary_%s.md", ts),
	)
	if err := os.WriteFile(
		mdPath, []byte(generateSummaryMarkdown(summary)), 0644,
	); err != nil {
		return fmt.Errorf(
			"failed to write Markdown summary: %w", err,
		)
	}

	latestJSON := filepath.Join(outputDir, "latest_summary.json")
	latestMD := filepath.Join(outputDir, "latest_summary.md")

	_ = os.Remove(latestJSON)
	_ = os.Remove(latestMD)
	_ = os.Symlink(filepath.Base(jsonPath), latestJSON)
	_ = os.Symlink(filepath.Base(mdPath), latestMD)

	return nil
}

// generateSummaryMarkdown renders a session summary as Markdown.
func generateSummaryMarkdown(summary *SessionSummary) string {
	var sb strings.Builder

	sb.WriteString("# Throughput Probe Session Summary\n\n")
	fmt.Fprintf(&sb, "**Session:** %s\n\n", summary.ID)
	fmt.Fprintf(&sb, "**Started:** %s\n\n",
		summary.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Generated:** %s\n\n",
		summary.GeneratedAt.Format(time.RFC3339))

	sb.WriteString("## Scenarios\n\n")
	sb.WriteString(
		"| Scenario | Iterations | Partial | Probes " +
			"| Failed Probes | Verdicts | Pass Rate |\n",
	)
	sb.WriteString(
		"|----------|------------|---------|--------" +
			"|---------------|----------|-----------|\n",
	)
	for _, s := range summary.Scenarios {
		fmt.Fprintf(&sb,
			"| %s | %d | %d | %d | %d | %d/%d | %.0f%% |\n",
			s.ScenarioID, s.Iterations, s.Partial, s.Probes,
			s.FailedProbes, s.Passed, s.Evaluations, s.PassRate*100,
		)
	}

	sb.WriteString("\n## Statistics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(&sb, "| Scenarios | %d |\n", len(summary.Scenarios))
	fmt.Fprintf(&sb, "| Iterations | %d |\n", summary.Iterations)
	fmt.Fprintf(&sb, "| Verdicts | %d |\n", summary.Evaluations)
	fmt.Fprintf(&sb, "| Passed | %d |\n", summary.Passed)
	fmt.Fprintf(&sb, "| Pass Rate | %.0f%% |\n",
		summary.OverallPassRate*100)

	return sb.String()
}

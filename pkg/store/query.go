package store

import (
	"context"
	"database/sql"
	"fmt"

	"digital.vasic.netprobe/pkg/scenario"
)

// SummaryRow is one row of the scenario_summary table.
type SummaryRow struct {
	ScenarioID    string
	Metric        scenario.Metric
	Aggregation   string
	Actual        float64
	Operator      string
	ExpectedValue string
	SampleCount   int
	Passed        bool
	Verdict       string
}

// Results returns the stored results of a scenario in insertion
// order.
func (s *Store) Results(ctx context.Context, scenarioID string) ([]scenario.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`SELECT timestamp, scenario_id, iteration, server_type, server,
		port, test_type, status, mbps, bits_per_second, bytes,
		retransmits, jitter_ms, error_message, run_id
		FROM %s WHERE scenario_id = ? ORDER BY id`,
		s.dialect.table("test_results"),
	)), scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []scenario.RunResult
	for rows.Next() {
		var (
			r         scenario.RunResult
			role, dir string
			errMsg    sql.NullString
			runID     sql.NullString
		)
		if err := rows.Scan(
			&r.Timestamp, &r.ScenarioID, &r.Iteration, &role,
			&r.Target.Host, &r.Target.Port, &dir, &r.Status, &r.Mbps,
			&r.BitsPerSecond, &r.Bytes, &r.Retransmits, &r.JitterMs,
			&errMsg, &runID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Target.Role = scenario.Role(role)
		r.Direction = scenario.Direction(dir)
		r.Error = errMsg.String
		r.RunID = runID.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountEvaluations returns the number of evaluation rows stored for
// a scenario.
func (s *Store) CountEvaluations(ctx context.Context, scenarioID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE scenario_id = ?",
		s.dialect.table("test_evaluations"),
	)), scenarioID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return n, nil
}

// Summary returns the scenario-scope verdicts of a scenario, one per
// expectation, ordered by metric and aggregation.
func (s *Store) Summary(ctx context.Context, scenarioID string) ([]SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`SELECT scenario_id, metric, aggregation, actual_value, operator,
		expected_value, sample_count, passed, verdict
		FROM %s WHERE scenario_id = ? ORDER BY metric, aggregation, operator, expected_value`,
		s.dialect.table("scenario_summary"),
	)), scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SummaryRow
	for rows.Next() {
		var (
			r      SummaryRow
			metric string
		)
		if err := rows.Scan(
			&r.ScenarioID, &metric, &r.Aggregation, &r.Actual,
			&r.Operator, &r.ExpectedValue, &r.SampleCount, &r.Passed,
			&r.Verdict,
		); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		r.Metric = scenario.Metric(metric)
		out = append(out, r)
	}
	return out, rows.Err()
}

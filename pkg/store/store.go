// Package store is the relational sink. Every batch is written in
// one transaction to test_results, test_evaluations and the
// scenario_summary table, over PostgreSQL (pgx) or SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"digital.vasic.netprobe/pkg/env"
	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/scenario"
)

// DefaultConnectTimeout bounds the initial ping.
const DefaultConnectTimeout = 10 * time.Second

// Store writes batches to a SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open connects to the configured database, verifies the
// connection and creates the schema if needed.
func Open(ctx context.Context, cfg env.Database, opts ...Option) (*Store, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == env.DriverSQLite {
		// A single connection serializes writers.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf(
			"failed to connect to %s: %w", cfg.Redacted(), err,
		)
	}

	s, err := New(ctx, db, cfg.Driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and migrates it.
func New(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:      db,
		dialect: d,
		logger:  logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize tables: %w", err)
		}
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "database" }

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write stores one batch atomically.
func (s *Store) Write(ctx context.Context, batch *scenario.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertResults(ctx, tx, batch.Results); err != nil {
		return err
	}
	if err := s.insertEvaluations(ctx, tx, batch.Records); err != nil {
		return err
	}
	if err := s.insertEvaluations(ctx, tx, batch.ScenarioRecords); err != nil {
		return err
	}
	if err := s.upsertSummary(ctx, tx, batch.ScenarioRecords); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logEvent("batch_stored", map[string]any{
		"scenario_id": batch.ScenarioID,
		"iteration":   batch.Iteration,
		"results":     len(batch.Results),
		"evaluations": len(batch.Records) + len(batch.ScenarioRecords),
	})
	return nil
}

func (s *Store) insertResults(
	ctx context.Context, tx *sql.Tx, results []scenario.RunResult,
) error {
	if len(results) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s
		(timestamp, scenario_id, iteration, server_type, server, port,
		test_type, status, mbps, bits_per_second, bytes, retransmits,
		jitter_ms, error_message, run_id)
		VALUES %s`,
		s.dialect.table("test_results"), placeholders(15),
	)))
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp, r.ScenarioID, r.Iteration, string(r.Target.Role),
			r.Target.Host, r.Target.Port, string(r.Direction), r.Status,
			r.Mbps, r.BitsPerSecond, r.Bytes, r.Retransmits, r.JitterMs,
			r.Error, r.RunID,
		); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	return nil
}

func (s *Store) insertEvaluations(
	ctx context.Context, tx *sql.Tx, records []scenario.EvaluationRecord,
) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s
		(timestamp, scenario_id, iteration, metric, operator,
		expected_value, actual_value, unit, evaluation_scope,
		aggregation, test_index, sample_count, passed, verdict)
		VALUES %s`,
		s.dialect.table("test_evaluations"), placeholders(14),
	)))
	if err != nil {
		return fmt.Errorf("failed to prepare evaluation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp, r.ScenarioID, r.Iteration, string(r.Metric),
			r.Operator, r.Expected.String(), r.Actual, r.Unit,
			string(r.Scope), r.Aggregation, r.TestIndex, r.SampleCount,
			r.Passed, r.Verdict,
		); err != nil {
			return fmt.Errorf("failed to insert evaluation: %w", err)
		}
	}
	return nil
}

func (s *Store) upsertSummary(
	ctx context.Context, tx *sql.Tx, records []scenario.EvaluationRecord,
) error {
	for _, r := range records {
		query := s.dialect.rebind(fmt.Sprintf(
			`INSERT INTO %s
			(scenario_id, metric, aggregation, timestamp, actual_value,
			operator, expected_value, unit, sample_count, passed, verdict)
			VALUES %s
			ON CONFLICT (scenario_id, metric, aggregation, operator,
			expected_value) DO UPDATE SET
			timestamp = excluded.timestamp,
			actual_value = excluded.actual_value,
			unit = excluded.unit,
			sample_count = excluded.sample_count,
			passed = excluded.passed,
			verdict = excluded.verdict`,
			s.dialect.table("scenario_summary"), placeholders(11),
		))
		if _, err := tx.ExecContext(ctx, query,
			r.ScenarioID, string(r.Metric), r.Aggregation, r.Timestamp,
			r.Actual, r.Operator, r.Expected.String(), r.Unit,
			r.SampleCount, r.Passed, r.Verdict,
		); err != nil {
			return fmt.Errorf("failed to upsert scenario summary: %w", err)
		}
	}
	return nil
}

func (s *Store) logEvent(event string, data map[string]any) {
	s.logger.Debug(event, logging.FieldsFromMap(data)...)
}

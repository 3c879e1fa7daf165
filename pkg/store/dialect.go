package store

import (
	"fmt"
	"strconv"
	"strings"

	"digital.vasic.netprobe/pkg/env"
)

// dialect captures the SQL differences between the supported
// drivers.
type dialect struct {
	driver string

	// schema prefixes table names; sqlite has no schemas.
	schema string

	idColumn  string
	timestamp string
	float     string
	boolean   string

	// numbered placeholders ($1, $2) instead of ?.
	numbered bool
}

var (
	postgresDialect = dialect{
		driver:    env.DriverPgx,
		schema:    "speed_test",
		idColumn:  "id BIGSERIAL PRIMARY KEY",
		timestamp: "TIMESTAMPTZ",
		float:     "DOUBLE PRECISION",
		boolean:   "BOOLEAN",
		numbered:  true,
	}
	sqliteDialect = dialect{
		driver:    env.DriverSQLite,
		idColumn:  "id INTEGER PRIMARY KEY AUTOINCREMENT",
		timestamp: "TIMESTAMP",
		float:     "REAL",
		boolean:   "BOOLEAN",
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case env.DriverPgx:
		return postgresDialect, nil
	case env.DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

func (d dialect) table(name string) string {
	if d.schema == "" {
		return name
	}
	return d.schema + "." + name
}

// rebind rewrites ? placeholders for drivers that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// placeholders returns "(?, ?, ...)" with n markers.
func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func (d dialect) schemaStatements() []string {
	var stmts []string
	if d.schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+d.schema)
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	timestamp %s NOT NULL,
	scenario_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	server_type TEXT NOT NULL,
	server TEXT NOT NULL,
	port INTEGER NOT NULL,
	test_type TEXT NOT NULL,
	status TEXT NOT NULL,
	mbps %s,
	bits_per_second %s,
	bytes BIGINT,
	retransmits INTEGER,
	jitter_ms %s,
	error_message TEXT,
	run_id TEXT
)`, d.table("test_results"), d.idColumn, d.timestamp, d.float, d.float, d.float),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	timestamp %s NOT NULL,
	scenario_id TEXT NOT NULL,
	iteration TEXT NOT NULL,
	metric TEXT NOT NULL,
	operator TEXT NOT NULL,
	expected_value TEXT NOT NULL,
	actual_value %s NOT NULL,
	unit TEXT,
	evaluation_scope TEXT NOT NULL,
	aggregation TEXT,
	test_index TEXT NOT NULL,
	sample_count INTEGER,
	passed %s NOT NULL,
	verdict TEXT NOT NULL
)`, d.table("test_evaluations"), d.idColumn, d.timestamp, d.float, d.boolean),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	scenario_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	aggregation TEXT NOT NULL,
	timestamp %s NOT NULL,
	actual_value %s NOT NULL,
	operator TEXT NOT NULL,
	expected_value TEXT NOT NULL,
	unit TEXT,
	sample_count INTEGER,
	passed %s NOT NULL,
	verdict TEXT NOT NULL,
	PRIMARY KEY (scenario_id, metric, aggregation, operator, expected_value)
)`, d.table("scenario_summary"), d.timestamp, d.float, d.boolean),
	)
	return stmts
}

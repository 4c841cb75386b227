// SPDX-License-Identifier: Apache-2.0

// Package advisor analyzes a live database schema for proactive
// improvement suggestions: missing indexes, unused indexes, timezone-naive
// timestamps, missing primary keys, and the like. It is grouped with
// pkg/safety and pkg/lint as a static-rule component (spec.md §1) but,
// unlike pkg/lint, it inspects the live schema rather than script text.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/waypointdb/waypoint/pkg/db"
)

// Severity is the severity of a single advisory.
type Severity int

const (
	Info Severity = iota
	Suggestion
	Warning
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Suggestion:
		return "suggestion"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Advisory is a single schema-improvement finding.
type Advisory struct {
	RuleID      string
	Category    string
	Severity    Severity
	Object      string
	Explanation string
	FixSQL      string // empty if no fix can be auto-generated
}

// Report is the aggregate result of analyzing a schema.
type Report struct {
	Schema          string
	Advisories      []Advisory
	WarningCount    int
	SuggestionCount int
	InfoCount       int
}

// Config tunes which advisory rules run.
type Config struct {
	RunAfterMigrate bool
	DisabledRules   []string
}

type ruleFunc func(ctx context.Context, conn db.DB, schema string) ([]Advisory, error)

var rules = []struct {
	id string
	fn ruleFunc
}{
	{"A001", checkFKWithoutIndex},
	{"A002", checkUnusedIndexes},
	{"A003", checkTimestampWithoutTZ},
	{"A004", checkTableWithoutPK},
	{"A005", checkNullableAllNonNull},
	{"A006", checkVarcharWithoutLimit},
	{"A007", checkDuplicateIndexes},
	{"A008", checkSeqScanLargeTable},
	{"A009", checkLargeEnum},
	{"A010", checkOrphanedSequences},
}

// Analyze runs every enabled rule against schema and returns the aggregate
// report.
func Analyze(ctx context.Context, conn db.DB, schema string, cfg Config) (Report, error) {
	disabled := make(map[string]bool, len(cfg.DisabledRules))
	for _, r := range cfg.DisabledRules {
		disabled[r] = true
	}

	var advisories []Advisory
	for _, rule := range rules {
		if disabled[rule.id] {
			continue
		}
		found, err := rule.fn(ctx, conn, schema)
		if err != nil {
			return Report{}, fmt.Errorf("advisor rule %s: %w", rule.id, err)
		}
		advisories = append(advisories, found...)
	}

	report := Report{Schema: schema, Advisories: advisories}
	for _, a := range advisories {
		switch a.Severity {
		case Warning:
			report.WarningCount++
		case Suggestion:
			report.SuggestionCount++
		case Info:
			report.InfoCount++
		}
	}
	return report, nil
}

// GenerateFixSQL concatenates every advisory's fix SQL (skipping those with
// none) into one script, each preceded by a comment identifying its rule.
func GenerateFixSQL(report Report) string {
	var fixes []string
	for _, a := range report.Advisories {
		if a.FixSQL == "" {
			continue
		}
		fixes = append(fixes, fmt.Sprintf("-- %s [%s]: %s\n%s", a.RuleID, a.Severity, a.Explanation, a.FixSQL))
	}
	return strings.Join(fixes, "\n\n")
}

func checkFKWithoutIndex(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND NOT EXISTS (
				SELECT 1 FROM pg_indexes pi
				WHERE pi.schemaname = $1
					AND pi.tablename = tc.table_name
					AND pi.indexdef LIKE '%' || kcu.column_name || '%'
			)
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A001",
			Category: "Performance",
			Severity: Warning,
			Object:   table + "." + column,
			Explanation: fmt.Sprintf(
				"Foreign key column %s.%s has no index, which can cause slow joins and constraint checks", table, column),
			FixSQL: fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s);", table, column, pq.QuoteIdentifier(table), pq.QuoteIdentifier(column)),
		})
	}
	return out, rows.Err()
}

func checkUnusedIndexes(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT s.indexrelname, s.relname
		FROM pg_stat_user_indexes s
		JOIN pg_index i ON s.indexrelid = i.indexrelid
		WHERE s.schemaname = $1
			AND s.idx_scan = 0
			AND NOT i.indisprimary
			AND NOT i.indisunique
		ORDER BY s.relname, s.indexrelname`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var indexName, tableName string
		if err := rows.Scan(&indexName, &tableName); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A002",
			Category: "Performance",
			Severity: Suggestion,
			Object:   indexName,
			Explanation: fmt.Sprintf(
				"Index %s on %s has never been used (0 scans). Consider removing it to reduce write overhead", indexName, tableName),
			FixSQL: fmt.Sprintf("DROP INDEX %s;", pq.QuoteIdentifier(indexName)),
		})
	}
	return out, rows.Err()
}

func checkTimestampWithoutTZ(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1
			AND data_type = 'timestamp without time zone'
		ORDER BY table_name, column_name`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A003",
			Category: "Correctness",
			Severity: Warning,
			Object:   table + "." + column,
			Explanation: fmt.Sprintf(
				"Column %s.%s uses TIMESTAMP WITHOUT TIME ZONE. Use TIMESTAMPTZ to avoid timezone ambiguity", table, column),
			FixSQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE TIMESTAMPTZ;", pq.QuoteIdentifier(table), pq.QuoteIdentifier(column)),
		})
	}
	return out, rows.Err()
}

func checkTableWithoutPK(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT t.table_name
		FROM information_schema.tables t
		WHERE t.table_schema = $1
			AND t.table_type = 'BASE TABLE'
			AND NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				WHERE tc.table_schema = $1
					AND tc.table_name = t.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
			)
		ORDER BY t.table_name`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A004",
			Category: "Correctness",
			Severity: Warning,
			Object:   table,
			Explanation: fmt.Sprintf(
				"Table %s has no primary key. This prevents logical replication and makes row identification unreliable", table),
		})
	}
	return out, rows.Err()
}

func checkNullableAllNonNull(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT c.table_name, c.column_name
		FROM information_schema.columns c
		JOIN pg_stat_user_tables s
			ON c.table_name = s.relname AND s.schemaname = $1
		WHERE c.table_schema = $1
			AND c.is_nullable = 'YES'
			AND s.n_live_tup > 100
			AND c.column_default IS NULL
		ORDER BY c.table_name, c.column_name`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type candidate struct{ table, column string }
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.table, &c.column); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Advisory
	for _, c := range candidates {
		nullCheck := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s IS NULL LIMIT 1)",
			pq.QuoteIdentifier(c.table), pq.QuoteIdentifier(c.column))

		var hasNulls bool
		if err := conn.QueryRowContext(ctx, nullCheck).Scan(&hasNulls); err != nil {
			continue // matches the reference implementation: skip on query failure
		}
		if hasNulls {
			continue
		}

		out = append(out, Advisory{
			RuleID:   "A005",
			Category: "Correctness",
			Severity: Info,
			Object:   c.table + "." + c.column,
			Explanation: fmt.Sprintf(
				"Column %s.%s is nullable but contains no NULL values. Consider adding NOT NULL constraint", c.table, c.column),
			FixSQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", pq.QuoteIdentifier(c.table), pq.QuoteIdentifier(c.column)),
		})
	}
	return out, nil
}

func checkVarcharWithoutLimit(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1
			AND data_type = 'character varying'
			AND character_maximum_length IS NULL
		ORDER BY table_name, column_name`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A006",
			Category: "Design",
			Severity: Info,
			Object:   table + "." + column,
			Explanation: fmt.Sprintf(
				"Column %s.%s is VARCHAR without length limit. Consider using TEXT or adding a length constraint", table, column),
		})
	}
	return out, rows.Err()
}

func checkDuplicateIndexes(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT a.indexname, b.indexname, a.tablename
		FROM pg_indexes a
		JOIN pg_indexes b
			ON a.tablename = b.tablename
			AND a.schemaname = b.schemaname
			AND a.indexname < b.indexname
			AND a.indexdef = b.indexdef
		WHERE a.schemaname = $1
		ORDER BY a.tablename, a.indexname`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var indexA, indexB, table string
		if err := rows.Scan(&indexA, &indexB, &table); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A007",
			Category: "Design",
			Severity: Warning,
			Object:   indexA + ", " + indexB,
			Explanation: fmt.Sprintf(
				"Indexes %s and %s on table %s have identical definitions. Remove the duplicate", indexA, indexB, table),
			FixSQL: fmt.Sprintf("DROP INDEX %s;", pq.QuoteIdentifier(indexB)),
		})
	}
	return out, rows.Err()
}

func checkSeqScanLargeTable(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT relname, seq_scan, n_live_tup
		FROM pg_stat_user_tables
		WHERE schemaname = $1
			AND n_live_tup > 100000
			AND seq_scan > 0
			AND seq_scan > idx_scan
		ORDER BY seq_scan DESC`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var table string
		var seqScans, rowCount int64
		if err := rows.Scan(&table, &seqScans, &rowCount); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A008",
			Category: "Performance",
			Severity: Warning,
			Object:   table,
			Explanation: fmt.Sprintf(
				"Table %s (~%d rows) has %d sequential scans exceeding index scans. Consider adding indexes", table, rowCount, seqScans),
		})
	}
	return out, rows.Err()
}

func checkLargeEnum(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT t.typname, count(e.enumlabel)::int
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		GROUP BY t.typname
		HAVING count(e.enumlabel) > 20
		ORDER BY t.typname`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A009",
			Category: "Design",
			Severity: Suggestion,
			Object:   name,
			Explanation: fmt.Sprintf(
				"Enum type %s has %d values. Enums with many values are hard to maintain; consider a lookup table", name, count),
		})
	}
	return out, rows.Err()
}

func checkOrphanedSequences(ctx context.Context, conn db.DB, schema string) ([]Advisory, error) {
	const query = `
		SELECT s.relname
		FROM pg_class s
		JOIN pg_namespace n ON n.oid = s.relnamespace
		WHERE s.relkind = 'S'
			AND n.nspname = $1
			AND NOT EXISTS (
				SELECT 1 FROM pg_depend d
				WHERE d.objid = s.oid
					AND d.deptype IN ('a', 'i')
			)
		ORDER BY s.relname`

	rows, err := conn.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advisory
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, Advisory{
			RuleID:   "A010",
			Category: "Correctness",
			Severity: Suggestion,
			Object:   name,
			Explanation: fmt.Sprintf("Sequence %s is not attached to any column. It may be orphaned", name),
			FixSQL:   fmt.Sprintf("DROP SEQUENCE IF EXISTS %s;", pq.QuoteIdentifier(name)),
		})
	}
	return out, rows.Err()
}

// SPDX-License-Identifier: Apache-2.0

// Package lint performs static analysis of migration scripts: anti-pattern
// and dangerous-operation detection that needs no database connection
// (spec.md §5, read-only commands). It complements pkg/safety, which
// requires a live connection to size tables before classifying risk.
package lint

import (
	"fmt"
	"strings"

	"github.com/waypointdb/waypoint/pkg/ddl"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/sqlsegment"
)

// Severity is the severity of a single lint finding.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Issue is a single lint finding.
type Issue struct {
	RuleID     string
	Severity   Severity
	Message    string
	Script     string
	Line       *int // nil if no line could be determined
	Suggestion string
}

// Report is the aggregate result of linting a set of migration scripts.
type Report struct {
	Issues       []Issue
	FilesChecked int
	ErrorCount   int
	WarningCount int
	InfoCount    int
}

// Lint runs every enabled rule against every non-undo script in all and
// returns the aggregate report. Rule IDs in disabledRules are skipped
// entirely. Undo scripts are never linted: they exist to reverse an
// already-reviewed script and are not part of the forward migration path.
func Lint(all []*migration.ResolvedMigration, disabledRules []string) Report {
	disabled := make(map[string]bool, len(disabledRules))
	for _, r := range disabledRules {
		disabled[r] = true
	}

	var issues []Issue
	filesChecked := 0

	for _, m := range all {
		if m.Kind == migration.KindUndo {
			continue
		}
		filesChecked++

		issues = append(issues, lintScript(m.SQL, m.ScriptFilename, disabled)...)
	}

	r := Report{Issues: issues, FilesChecked: filesChecked}
	for _, i := range issues {
		switch i.Severity {
		case Error:
			r.ErrorCount++
		case Warning:
			r.WarningCount++
		case Info:
			r.InfoCount++
		}
	}
	return r
}

func lintScript(sql, script string, disabled map[string]bool) []Issue {
	var issues []Issue

	if !hasMeaningfulContent(sql) {
		if !disabled["I001"] {
			issues = append(issues, Issue{
				RuleID:   "I001",
				Severity: Info,
				Message:  "File contains only comments or whitespace",
				Script:   script,
			})
		}
		return issues
	}

	upper := strings.ToUpper(sql)
	statements := sqlsegment.Split(sql)

	ddlCount := 0
	hasBegin := false

	for _, stmt := range statements {
		trimmed := strings.TrimSpace(stmt)
		if len(trimmed) >= 5 && strings.EqualFold(trimmed[:5], "BEGIN") {
			hasBegin = true
		}

		op := ddl.Classify(stmt)
		if op.Kind == ddl.KindOther {
			continue
		}
		ddlCount++

		issues = append(issues, lintOperation(op, sql, upper, script, disabled)...)
	}

	if ddlCount > 1 && !hasBegin && !disabled["E002"] {
		issues = append(issues, Issue{
			RuleID:     "E002",
			Severity:   Error,
			Message:    fmt.Sprintf("%d DDL statements without explicit BEGIN/COMMIT (relies on tool-level transaction)", ddlCount),
			Script:     script,
			Suggestion: "Consider adding explicit BEGIN/COMMIT for clarity, or split into separate migrations",
		})
	}

	return issues
}

func lintOperation(op ddl.Operation, sql, upper, script string, disabled map[string]bool) []Issue {
	var issues []Issue

	switch op.Kind {
	case ddl.KindCreateTable:
		if !op.IfNotExists && !disabled["W001"] {
			issues = append(issues, Issue{
				RuleID:     "W001",
				Severity:   Warning,
				Message:    fmt.Sprintf("CREATE TABLE %s without IF NOT EXISTS", op.Table),
				Script:     script,
				Line:       findLine(sql, upper, "CREATE TABLE"),
				Suggestion: "Use CREATE TABLE IF NOT EXISTS to make migration re-runnable",
			})
		}

	case ddl.KindCreateIndex:
		if !disabled["W002"] {
			issues = append(issues, Issue{
				RuleID:     "W002",
				Severity:   Warning,
				Message:    fmt.Sprintf("CREATE INDEX on %s without CONCURRENTLY (blocks writes during creation)", op.Table),
				Script:     script,
				Line:       findLine(sql, upper, "CREATE INDEX"),
				Suggestion: "Use CREATE INDEX CONCURRENTLY to avoid blocking writes",
			})
		}

	case ddl.KindAddColumn:
		if op.NotNull && !op.HasDefault && !disabled["E001"] {
			issues = append(issues, Issue{
				RuleID:     "E001",
				Severity:   Error,
				Message:    fmt.Sprintf("ADD COLUMN %s.%s is NOT NULL without DEFAULT (will fail if table has rows)", op.Table, op.Column),
				Script:     script,
				Line:       findLine(sql, upper, "ADD"),
				Suggestion: "Add a DEFAULT value or make the column nullable",
			})
		}
		if op.HasDefault && !disabled["W006"] && strings.Contains(upper, "DEFAULT") &&
			(strings.Contains(upper, "RANDOM()") || strings.Contains(upper, "GEN_RANDOM_UUID()") || strings.Contains(upper, "NOW()")) {
			issues = append(issues, Issue{
				RuleID:     "W006",
				Severity:   Warning,
				Message:    fmt.Sprintf("ADD COLUMN %s.%s with volatile DEFAULT expression (pre-PG11: table rewrite)", op.Table, op.Column),
				Script:     script,
				Line:       findLine(sql, upper, "DEFAULT"),
				Suggestion: "On PostgreSQL < 11, volatile defaults cause a full table rewrite",
			})
		}

	case ddl.KindAlterColumnType:
		if !disabled["W003"] {
			issues = append(issues, Issue{
				RuleID:     "W003",
				Severity:   Warning,
				Message:    fmt.Sprintf("ALTER COLUMN %s.%s TYPE causes full table rewrite and exclusive lock", op.Table, op.Column),
				Script:     script,
				Line:       findLine(sql, upper, "ALTER COLUMN"),
				Suggestion: "Consider a multi-step approach: add new column, backfill, swap",
			})
		}

	case ddl.KindDropTable:
		if !disabled["W004"] {
			issues = append(issues, Issue{
				RuleID:     "W004",
				Severity:   Warning,
				Message:    fmt.Sprintf("DROP TABLE %s is destructive and irreversible", op.Table),
				Script:     script,
				Line:       findLine(sql, upper, "DROP TABLE"),
				Suggestion: "Ensure you have a backup or undo migration",
			})
		}

	case ddl.KindDropColumn:
		if !disabled["W004"] {
			issues = append(issues, Issue{
				RuleID:     "W004",
				Severity:   Warning,
				Message:    fmt.Sprintf("DROP COLUMN %s.%s is destructive and irreversible", op.Table, op.Column),
				Script:     script,
				Line:       findLine(sql, upper, "DROP COLUMN"),
				Suggestion: "Ensure you have a backup or undo migration",
			})
		}

	case ddl.KindTruncate:
		if !disabled["W007"] {
			issues = append(issues, Issue{
				RuleID:     "W007",
				Severity:   Warning,
				Message:    fmt.Sprintf("TRUNCATE TABLE %s is destructive and acquires ACCESS EXCLUSIVE lock", op.Table),
				Script:     script,
				Line:       findLine(sql, upper, "TRUNCATE"),
				Suggestion: "Ensure this is intentional and the table can be locked exclusively",
			})
		}
	}

	return issues
}

func hasMeaningfulContent(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		t := strings.TrimSpace(line)
		if t != "" && !strings.HasPrefix(t, "--") {
			return true
		}
	}
	return false
}

// findLine returns the approximate 1-based line number of pattern's first
// occurrence in sql, or nil if it can't be found. upper must be
// strings.ToUpper(sql); callers precompute it once per script.
func findLine(sql, upper, pattern string) *int {
	idx := strings.Index(upper, pattern)
	if idx == -1 {
		return nil
	}
	line := strings.Count(sql[:idx], "\n") + 1
	return &line
}

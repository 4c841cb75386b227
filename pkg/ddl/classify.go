// SPDX-License-Identifier: Apache-2.0

// Package ddl recognizes the kind of DDL a single SQL statement performs,
// using regex-level matching (by design — see spec.md §4.1) rather than a
// full SQL parser.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind enumerates the DDL operation kinds this engine cares about for
// safety analysis, batch pre-validation, and reversal-warning generation.
type Kind int

const (
	KindOther Kind = iota
	KindCreateTable
	KindDropTable
	KindAlterTable
	KindAlterColumnType
	KindAddColumn
	KindDropColumn
	KindCreateIndex
	KindCreateIndexConcurrently
	KindDropIndex
	KindDropIndexConcurrently
	KindReindexConcurrently
	KindCreateView
	KindDropView
	KindCreateFunction
	KindDropFunction
	KindCreateEnum
	KindCreateConstraint
	KindDropConstraint
	KindTruncate
	KindCreateDatabase
	KindDropDatabase
	KindVacuum
	KindCluster
)

// Operation is the structured result of classifying one SQL statement. The
// extra fields (Column, IfNotExists, NotNull, HasDefault) are populated only
// for the kinds that carry them and exist to feed pkg/lint's rule set, which
// needs more than just "what kind of statement is this".
type Operation struct {
	Kind        Kind
	Table       string // affected table, if any
	Column      string // affected column, if any
	IfNotExists bool   // CREATE TABLE/INDEX ... IF NOT EXISTS
	NotNull     bool   // ADD COLUMN ... NOT NULL
	HasDefault  bool   // ADD COLUMN ... DEFAULT ...
}

// String renders a short human-readable summary of the operation, used by
// the changelog renderer.
func (op Operation) String() string {
	switch op.Kind {
	case KindCreateTable:
		return fmt.Sprintf("CREATE TABLE %s", op.Table)
	case KindDropTable:
		return fmt.Sprintf("DROP TABLE %s", op.Table)
	case KindAddColumn:
		if op.Column != "" {
			return fmt.Sprintf("ADD COLUMN %s.%s", op.Table, op.Column)
		}
		return fmt.Sprintf("ADD COLUMN on %s", op.Table)
	case KindDropColumn:
		if op.Column != "" {
			return fmt.Sprintf("DROP COLUMN %s.%s", op.Table, op.Column)
		}
		return fmt.Sprintf("DROP COLUMN on %s", op.Table)
	case KindAlterColumnType:
		return fmt.Sprintf("ALTER COLUMN %s.%s TYPE", op.Table, op.Column)
	case KindAlterTable:
		return fmt.Sprintf("ALTER TABLE %s", op.Table)
	case KindCreateIndex, KindCreateIndexConcurrently:
		return fmt.Sprintf("CREATE INDEX ON %s", op.Table)
	case KindDropIndex, KindDropIndexConcurrently:
		return fmt.Sprintf("DROP INDEX %s", op.Table)
	case KindCreateView:
		return fmt.Sprintf("CREATE VIEW %s", op.Table)
	case KindDropView:
		return fmt.Sprintf("DROP VIEW %s", op.Table)
	case KindCreateFunction:
		return fmt.Sprintf("CREATE FUNCTION %s", op.Table)
	case KindDropFunction:
		return fmt.Sprintf("DROP FUNCTION %s", op.Table)
	case KindCreateEnum:
		return fmt.Sprintf("CREATE TYPE %s AS ENUM", op.Table)
	case KindCreateConstraint:
		return fmt.Sprintf("ADD CONSTRAINT on %s", op.Table)
	case KindDropConstraint:
		return fmt.Sprintf("DROP CONSTRAINT on %s", op.Table)
	case KindTruncate:
		return fmt.Sprintf("TRUNCATE %s", op.Table)
	case KindCreateDatabase:
		return fmt.Sprintf("CREATE DATABASE %s", op.Table)
	case KindDropDatabase:
		return fmt.Sprintf("DROP DATABASE %s", op.Table)
	case KindVacuum:
		return "VACUUM"
	case KindCluster:
		return "CLUSTER"
	default:
		return "other statement"
	}
}

var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindCreateTable, regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindDropTable, regexp.MustCompile(`(?is)^\s*DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindAlterColumnType, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s+ALTER\s+COLUMN\s+([A-Za-z0-9_"]+)\s+(?:SET\s+DATA\s+)?TYPE\s`)},
	{KindCreateConstraint, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s+ADD\s+CONSTRAINT\s`)},
	{KindDropConstraint, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s+DROP\s+CONSTRAINT\s`)},
	{KindAddColumn, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s+ADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_"]+)\s`)},
	{KindDropColumn, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s+DROP\s+COLUMN\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_"]+)`)},
	{KindAlterTable, regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindCreateIndexConcurrently, regexp.MustCompile(`(?is)^\s*CREATE\s+(?:UNIQUE\s+)?INDEX\s+CONCURRENTLY\s+(?:IF\s+NOT\s+EXISTS\s+)?[A-Za-z0-9_"]*\s*ON\s+([A-Za-z0-9_."]+)`)},
	{KindCreateIndex, regexp.MustCompile(`(?is)^\s*CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?[A-Za-z0-9_"]*\s*ON\s+([A-Za-z0-9_."]+)`)},
	{KindDropIndexConcurrently, regexp.MustCompile(`(?is)^\s*DROP\s+INDEX\s+CONCURRENTLY\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindDropIndex, regexp.MustCompile(`(?is)^\s*DROP\s+INDEX\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindReindexConcurrently, regexp.MustCompile(`(?is)^\s*REINDEX\s+.*CONCURRENTLY`)},
	{KindCreateView, regexp.MustCompile(`(?is)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?(?:MATERIALIZED\s+)?VIEW\s+([A-Za-z0-9_."]+)`)},
	{KindDropView, regexp.MustCompile(`(?is)^\s*DROP\s+(?:MATERIALIZED\s+)?VIEW\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindCreateFunction, regexp.MustCompile(`(?is)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?FUNCTION\s+([A-Za-z0-9_."]+)`)},
	{KindDropFunction, regexp.MustCompile(`(?is)^\s*DROP\s+FUNCTION\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindCreateEnum, regexp.MustCompile(`(?is)^\s*CREATE\s+TYPE\s+([A-Za-z0-9_."]+)\s+AS\s+ENUM`)},
	{KindTruncate, regexp.MustCompile(`(?is)^\s*TRUNCATE\s+(?:TABLE\s+)?([A-Za-z0-9_."]+)`)},
	{KindCreateDatabase, regexp.MustCompile(`(?is)^\s*CREATE\s+DATABASE\s+([A-Za-z0-9_."]+)`)},
	{KindDropDatabase, regexp.MustCompile(`(?is)^\s*DROP\s+DATABASE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)},
	{KindVacuum, regexp.MustCompile(`(?is)^\s*VACUUM\b`)},
	{KindCluster, regexp.MustCompile(`(?is)^\s*CLUSTER\b`)},
}

var (
	ifNotExistsRe = regexp.MustCompile(`(?i)IF\s+NOT\s+EXISTS`)
	notNullRe     = regexp.MustCompile(`(?i)\bNOT\s+NULL\b`)
	defaultRe     = regexp.MustCompile(`(?i)\bDEFAULT\b`)
)

// Classify recognizes the DDL kind of a single (already-segmented) SQL
// statement.
func Classify(stmt string) Operation {
	stmt = strings.TrimSpace(stmt)

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}

		op := Operation{Kind: p.kind}
		if len(m) > 1 {
			op.Table = unquote(m[1])
		}
		if len(m) > 2 {
			op.Column = unquote(m[2])
		}

		switch p.kind {
		case KindCreateTable, KindCreateIndex, KindCreateIndexConcurrently:
			op.IfNotExists = ifNotExistsRe.MatchString(stmt)
		case KindAddColumn:
			op.NotNull = notNullRe.MatchString(stmt)
			op.HasDefault = defaultRe.MatchString(stmt)
		}

		return op
	}

	return Operation{Kind: KindOther}
}

func unquote(ident string) string {
	ident = strings.Trim(ident, `"`)
	if idx := strings.LastIndex(ident, "."); idx != -1 {
		ident = ident[idx+1:]
	}
	return strings.Trim(ident, `"`)
}

// IsNonTransactional reports whether a statement of this kind can never
// legally run inside a transaction block (spec.md §4.8 step 1).
func (k Kind) IsNonTransactional() bool {
	switch k {
	case KindCreateIndexConcurrently, KindDropIndexConcurrently, KindReindexConcurrently,
		KindCreateDatabase, KindDropDatabase, KindVacuum, KindCluster:
		return true
	default:
		return false
	}
}

// IsDataLoss reports whether a statement of this kind discards data.
func (k Kind) IsDataLoss() bool {
	switch k {
	case KindDropTable, KindDropColumn, KindTruncate:
		return true
	default:
		return false
	}
}

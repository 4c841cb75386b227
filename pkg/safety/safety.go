// SPDX-License-Identifier: Apache-2.0

// Package safety classifies the risk of running a DDL statement against a
// live table, by lock level and table-size bucket (spec.md §4.11).
package safety

import (
	"context"
	"database/sql"
	"errors"

	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/ddl"
)

// SizeBucket buckets a table's estimated row count.
type SizeBucket int

const (
	Small SizeBucket = iota // < 10K
	Medium                  // < 1M
	Large                   // < 100M
	Huge                    // >= 100M
)

func bucketFor(liveTuples int64) SizeBucket {
	switch {
	case liveTuples < 10_000:
		return Small
	case liveTuples < 1_000_000:
		return Medium
	case liveTuples < 100_000_000:
		return Large
	default:
		return Huge
	}
}

// LockLevel mirrors PostgreSQL's documented lock hierarchy for the
// statement kinds this engine classifies.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockShare
	LockShareUpdateExclusive
	LockAccessExclusive
)

func lockLevelFor(k ddl.Kind) LockLevel {
	switch k {
	case ddl.KindCreateTable, ddl.KindCreateEnum, ddl.KindCreateFunction, ddl.KindCreateDatabase:
		return LockNone
	case ddl.KindCreateIndex:
		return LockShare
	case ddl.KindCreateIndexConcurrently:
		return LockShareUpdateExclusive
	default:
		return LockAccessExclusive
	}
}

// Verdict is the safety classification of a single statement or a whole
// script (the worst verdict across its statements).
type Verdict int

const (
	Safe Verdict = iota
	Caution
	Danger
)

func (v Verdict) String() string {
	switch v {
	case Safe:
		return "Safe"
	case Caution:
		return "Caution"
	case Danger:
		return "Danger"
	default:
		return "Unknown"
	}
}

// StatementAssessment is the analysis of one DDL statement.
type StatementAssessment struct {
	Statement string
	Operation ddl.Operation
	Lock      LockLevel
	Size      SizeBucket
	DataLoss  bool
	Verdict   Verdict
}

// TableSizer resolves a live row-count estimate for a table, via
// pg_stat_user_tables.n_live_tup.
type TableSizer interface {
	LiveTupleEstimate(ctx context.Context, conn db.DB, schema, table string) (int64, bool, error)
}

// Assess analyzes every statement in a script and returns per-statement
// assessments plus the overall (worst) verdict.
func Assess(ctx context.Context, conn db.DB, schemaName string, statements []string, sizer TableSizer) ([]StatementAssessment, Verdict, error) {
	var assessments []StatementAssessment
	overall := Safe

	for _, stmt := range statements {
		op := ddl.Classify(stmt)

		size := Small
		if op.Table != "" {
			liveTuples, exists, err := sizer.LiveTupleEstimate(ctx, conn, schemaName, op.Table)
			if err != nil {
				return nil, Danger, err
			}
			if exists {
				size = bucketFor(liveTuples)
			}
		}

		lock := lockLevelFor(op.Kind)
		dataLoss := op.Kind.IsDataLoss()

		verdict := verdictFor(lock, size, dataLoss)
		if verdict > overall {
			overall = verdict
		}

		assessments = append(assessments, StatementAssessment{
			Statement: stmt,
			Operation: op,
			Lock:      lock,
			Size:      size,
			DataLoss:  dataLoss,
			Verdict:   verdict,
		})
	}

	return assessments, overall, nil
}

func verdictFor(lock LockLevel, size SizeBucket, dataLoss bool) Verdict {
	large := size == Large || size == Huge

	switch {
	case lock == LockAccessExclusive && large:
		return Danger
	case dataLoss && large:
		return Danger
	case lock == LockAccessExclusive:
		return Caution
	case lock == LockShare && large:
		return Caution
	default:
		return Safe
	}
}

// PgCatalogSizer is the live TableSizer backed by pg_stat_user_tables.
type PgCatalogSizer struct{}

func (PgCatalogSizer) LiveTupleEstimate(ctx context.Context, conn db.DB, schemaName, table string) (int64, bool, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT n_live_tup FROM pg_stat_user_tables WHERE schemaname = $1 AND relname = $2
	`, schemaName, table)

	var n int64
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

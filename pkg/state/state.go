// SPDX-License-Identifier: Apache-2.0

// Package state manages the schema_history table: its DDL, the append-only
// insert protocol, and the advisory lock guarding concurrent writers
// (spec.md §4.5, §4.6).
package state

import (
	"context"
	"fmt"
	"hash/crc32"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/waypointdb/waypoint/pkg/db"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// InvalidIdentifierError reports a configured schema or table name that
// fails the identifier safety check.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s identifier %q: must match [A-Za-z0-9_]+", e.Kind, e.Value)
}

// LockError reports a bounded advisory-lock acquisition timing out.
type LockError struct {
	LockID int64
}

func (e LockError) Error() string {
	return fmt.Sprintf("timed out waiting for advisory lock %d", e.LockID)
}

const sqlInit = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[2]s (
	installed_rank  INT PRIMARY KEY,
	version         VARCHAR(50),
	description     VARCHAR(200) NOT NULL,
	type            VARCHAR(20) NOT NULL,
	script          VARCHAR(1000) NOT NULL,
	checksum        INT,
	installed_by    VARCHAR(100) NOT NULL,
	installed_on    TIMESTAMPTZ NOT NULL DEFAULT now(),
	execution_time  INT NOT NULL,
	success         BOOL NOT NULL,
	reversal_sql    TEXT
);

CREATE INDEX IF NOT EXISTS %[3]s_s_idx ON %[2]s (success);
CREATE INDEX IF NOT EXISTS %[3]s_v_idx ON %[2]s (version);

-- Additive self-migrations of the history table; tolerated silently if they
-- fail (e.g. insufficient privileges on a pre-existing table).
ALTER TABLE %[2]s ADD COLUMN IF NOT EXISTS reversal_sql TEXT;
`

// Entry is one row of the history table.
type Entry struct {
	InstalledRank int64
	Version       *string
	Description   string
	Type          string
	Script        string
	Checksum      *int32
	InstalledBy   string
	InstalledOn   time.Time
	ExecutionTime int64
	Success       bool
	ReversalSQL   *string
}

// State wraps the history table and its advisory lock for a single
// (schema, table) pair.
type State struct {
	db        db.DB
	Schema    string
	Table     string
	qualified string
	lockID    int64
}

// New validates the configured schema/table identifiers and returns a State
// bound to them.
func New(conn db.DB, schema, table string) (*State, error) {
	if !identifierRe.MatchString(schema) {
		return nil, InvalidIdentifierError{Kind: "schema", Value: schema}
	}
	if !identifierRe.MatchString(table) {
		return nil, InvalidIdentifierError{Kind: "table", Value: table}
	}

	qualified := pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
	lockID := int64(crc32.ChecksumIEEE([]byte(schema + "." + table)))

	return &State{
		db:        conn,
		Schema:    schema,
		Table:     table,
		qualified: qualified,
		lockID:    lockID,
	}, nil
}

// Init creates the history schema/table if they do not already exist.
func (s *State) Init(ctx context.Context) error {
	stmt := fmt.Sprintf(sqlInit, pq.QuoteIdentifier(s.Schema), s.qualified, s.Table)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Insert appends one history row using an atomic subquery to assign
// installed_rank, so concurrent-rank assignment and row insertion are
// race-free under the advisory lock.
func (s *State) Insert(ctx context.Context, e Entry) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (
			installed_rank, version, description, type, script, checksum,
			installed_by, execution_time, success, reversal_sql
		)
		SELECT COALESCE(MAX(installed_rank), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8, $9
		FROM %s
	`, s.qualified, s.qualified)

	_, err := s.db.ExecContext(ctx, stmt,
		e.Version, e.Description, e.Type, e.Script, e.Checksum,
		e.InstalledBy, e.ExecutionTime, e.Success, e.ReversalSQL)
	return err
}

// Qualified returns the schema-qualified, identifier-quoted table name.
func (s *State) Qualified() string {
	return s.qualified
}

// InsertSQL returns the parameterized insert statement used by the apply
// protocol when it needs to run the insert inside its own transaction and
// read back the assigned installed_rank via RETURNING.
func (s *State) InsertSQL() string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			installed_rank, version, description, type, script, checksum,
			installed_by, execution_time, success, reversal_sql
		)
		SELECT COALESCE(MAX(installed_rank), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8, $9
		FROM %s
		RETURNING installed_rank
	`, s.qualified, s.qualified)
}

// UpdateReversalSQL attaches captured reversal DDL to an existing history
// row by installed_rank.
func (s *State) UpdateReversalSQL(ctx context.Context, installedRank int64, reversalSQL string) error {
	stmt := fmt.Sprintf(`UPDATE %s SET reversal_sql = $1 WHERE installed_rank = $2`, s.qualified)
	_, err := s.db.ExecContext(ctx, stmt, reversalSQL, installedRank)
	return err
}

// DeleteFailed removes every history row with success = false, the first
// step of repair.
func (s *State) DeleteFailed(ctx context.Context) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE success = false`, s.qualified)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// UpdateChecksum re-syncs the checksum column of an existing row, used by
// repair when a successful row's checksum no longer matches the on-disk
// script.
func (s *State) UpdateChecksum(ctx context.Context, installedRank int64, checksum int32) error {
	stmt := fmt.Sprintf(`UPDATE %s SET checksum = $1 WHERE installed_rank = $2`, s.qualified)
	_, err := s.db.ExecContext(ctx, stmt, checksum, installedRank)
	return err
}

// All returns every history row ordered by installed_rank.
func (s *State) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT installed_rank, version, description, type, script, checksum,
		       installed_by, installed_on, execution_time, success, reversal_sql
		FROM %s ORDER BY installed_rank ASC
	`, s.qualified))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.InstalledRank, &e.Version, &e.Description, &e.Type, &e.Script,
			&e.Checksum, &e.InstalledBy, &e.InstalledOn, &e.ExecutionTime, &e.Success, &e.ReversalSQL); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EffectiveApplied derives the "effective applied" set: for each (version,
// type) the most recent row wins, and only successful most-recent rows
// count as applied.
func EffectiveApplied(entries []Entry) map[string]Entry {
	latest := make(map[string]Entry)
	for _, e := range entries {
		key := e.Type
		if e.Version != nil {
			key = e.Type + ":" + *e.Version
		} else {
			key = e.Type + ":" + e.Script
		}
		if cur, ok := latest[key]; !ok || e.InstalledRank > cur.InstalledRank {
			latest[key] = e
		}
	}

	applied := make(map[string]Entry)
	for key, e := range latest {
		if e.Success {
			applied[key] = e
		}
	}
	return applied
}

// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/waypointdb/waypoint/pkg/db"
)

// Metadata is the JSON sidecar persisted alongside a snapshot's DDL file.
type Metadata struct {
	ID          string    `json:"id"`
	Schema      string    `json:"schema"`
	TableCount  int       `json:"tableCount"`
	ViewCount   int       `json:"viewCount"`
	TimestampAt time.Time `json:"timestampUtc"`
}

// Snapshot introspects schemaName and writes its DDL and metadata to dir,
// keyed by a generated id. Both files are written atomically
// (write-to-temp-and-rename).
func Snapshot(ctx context.Context, conn db.DB, schemaName, dir string) (string, error) {
	snap, err := Introspect(ctx, conn, schemaName)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	ddl := ToDDL(snap)

	meta := Metadata{
		ID:          id,
		Schema:      schemaName,
		TableCount:  len(snap.Tables),
		ViewCount:   len(snap.Views),
		TimestampAt: time.Now().UTC(),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}

	if err := writeAtomic(filepath.Join(dir, id+".sql"), []byte(strings.Join(ddl, "\n\n"))); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(dir, id+".json"), metaJSON); err != nil {
		return "", err
	}

	return id, nil
}

// ToDDL renders a snapshot from nothing (an empty before) so every object in
// it appears as an Added event, in emitted DDL form.
func ToDDL(snap *SchemaSnapshot) []string {
	empty := NewSnapshot(snap.Name)
	return Emit(Diff(empty, snap))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Restore drops and recreates schemaName, then replays the snapshot's DDL
// file statement-by-statement, counting successes.
func Restore(ctx context.Context, conn db.DB, schemaName, dir, id string) (int, error) {
	ddlPath := filepath.Join(dir, id+".sql")
	raw, err := os.ReadFile(ddlPath)
	if err != nil {
		return 0, err
	}

	q := pq.QuoteIdentifier(schemaName)
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE;", q)); err != nil {
		return 0, err
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s;", q)); err != nil {
		return 0, err
	}

	statements := strings.Split(string(raw), "\n\n")
	successes := 0
	err = conn.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s;", q)); err != nil {
			return err
		}
		for _, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("restore failed on statement %q: %w", stmt, err)
			}
			successes++
		}
		return nil
	})
	if err != nil {
		return successes, err
	}

	return successes, nil
}

// ReplayIntoScratchSchema creates a uniquely-named scratch schema prefixed by
// namePrefix, replays statements into it with search_path pinned so
// unqualified object names land there rather than wherever the connection
// pool's next pooled connection happens to default to, and returns the
// scratch schema's name together with a cleanup func that drops it. Any
// qualified reference to fromSchema within statements is rewritten to the
// scratch schema first.
func ReplayIntoScratchSchema(ctx context.Context, conn db.DB, namePrefix, fromSchema string, statements []string) (string, func(), error) {
	scratch := namePrefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	q := pq.QuoteIdentifier(scratch)

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s;", q)); err != nil {
		return "", nil, err
	}
	cleanup := func() {
		_, _ = conn.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE;", q))
	}

	err := conn.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s;", q)); err != nil {
			return err
		}
		for _, stmt := range statements {
			rewritten := strings.ReplaceAll(stmt, pq.QuoteIdentifier(fromSchema)+".", q+".")
			if _, err := tx.ExecContext(ctx, rewritten); err != nil {
				return fmt.Errorf("replaying statement into scratch schema %s failed: %w", scratch, err)
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return "", nil, err
	}

	return scratch, cleanup, nil
}

// Drift creates a temporary schema, replays the expected forward sequence
// into it, introspects both, and diffs temp (expected) against live
// (actual). The history table itself is filtered from results, and the
// temp schema is always dropped on exit.
func Drift(ctx context.Context, conn db.DB, liveSchema string, expectedDDL []string, historyTable string) ([]SchemaDiff, error) {
	tempSchema, cleanup, err := ReplayIntoScratchSchema(ctx, conn, "waypoint_drift", liveSchema, expectedDDL)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	expected, err := Introspect(ctx, conn, tempSchema)
	if err != nil {
		return nil, err
	}
	actual, err := Introspect(ctx, conn, liveSchema)
	if err != nil {
		return nil, err
	}

	delete(actual.Tables, historyTable)
	delete(expected.Tables, historyTable)

	return Diff(expected, actual), nil
}

// DiffAgainstSnapshotFile replays the DDL captured in dir/id.sql into a
// scratch schema and diffs it against the live schema, filtering the history
// table out of both sides.
func DiffAgainstSnapshotFile(ctx context.Context, conn db.DB, liveSchema, historyTable, dir, id string) ([]SchemaDiff, error) {
	ddlPath := filepath.Join(dir, id+".sql")
	raw, err := os.ReadFile(ddlPath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}

	var statements []string
	for _, stmt := range strings.Split(string(raw), "\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	scratchSchema, cleanup, err := ReplayIntoScratchSchema(ctx, conn, "waypoint_diff", liveSchema, statements)
	if err != nil {
		return nil, fmt.Errorf("replaying snapshot %s: %w", id, err)
	}
	defer cleanup()

	snapshotted, err := Introspect(ctx, conn, scratchSchema)
	if err != nil {
		return nil, err
	}
	live, err := Introspect(ctx, conn, liveSchema)
	if err != nil {
		return nil, err
	}

	delete(live.Tables, historyTable)
	delete(snapshotted.Tables, historyTable)

	return Diff(snapshotted, live), nil
}

// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/schema"
	"github.com/waypointdb/waypoint/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		conn := &db.RDB{DB: sqlDB}

		_, err := sqlDB.ExecContext(ctx, "CREATE TABLE widgets (id int primary key, name text);")
		require.NoError(t, err)

		dir := t.TempDir()
		id, err := schema.Snapshot(ctx, conn, "public", dir)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		_, err = sqlDB.ExecContext(ctx, "DROP TABLE widgets;")
		require.NoError(t, err)

		successes, err := schema.Restore(ctx, conn, "restored", dir, id)
		require.NoError(t, err)
		assert.Positive(t, successes)

		restored, err := schema.Introspect(ctx, conn, "restored")
		require.NoError(t, err)
		assert.Contains(t, restored.Tables, "widgets")
	})
}

func TestDriftDetectsDivergenceFromExpectedDDL(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		conn := &db.RDB{DB: sqlDB}

		_, err := sqlDB.ExecContext(ctx, "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, err)

		expected := []string{"CREATE TABLE \"public\".widgets (\n\tid integer\n);"}

		diffs, err := schema.Drift(ctx, conn, "public", expected, "schema_history")
		require.NoError(t, err)
		assert.NotEmpty(t, diffs, "primary key present in live but absent from expected DDL should surface as drift")
	})
}

func TestDiffAgainstSnapshotFileReportsNoDifferencesWhenUnchanged(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		conn := &db.RDB{DB: sqlDB}

		_, err := sqlDB.ExecContext(ctx, "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, err)

		dir := t.TempDir()
		id, err := schema.Snapshot(ctx, conn, "public", dir)
		require.NoError(t, err)

		diffs, err := schema.DiffAgainstSnapshotFile(ctx, conn, "public", "schema_history", dir, id)
		require.NoError(t, err)
		assert.Empty(t, diffs)
	})
}

func TestDiffAgainstSnapshotFileDetectsNewColumn(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		conn := &db.RDB{DB: sqlDB}

		_, err := sqlDB.ExecContext(ctx, "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, err)

		dir := t.TempDir()
		id, err := schema.Snapshot(ctx, conn, "public", dir)
		require.NoError(t, err)

		_, err = sqlDB.ExecContext(ctx, "ALTER TABLE widgets ADD COLUMN name text;")
		require.NoError(t, err)

		diffs, err := schema.DiffAgainstSnapshotFile(ctx, conn, "public", "schema_history", dir, id)
		require.NoError(t, err)
		assert.NotEmpty(t, diffs)
	})
}

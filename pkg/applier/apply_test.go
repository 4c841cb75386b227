// SPDX-License-Identifier: Apache-2.0

package applier_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/testutils"
)

// hugeSizer always reports a table as huge, forcing a Danger verdict on any
// access-exclusive-locking statement regardless of the table's real size.
type hugeSizer struct{}

func (hugeSizer) LiveTupleEstimate(context.Context, db.DB, string, string) (int64, bool, error) {
	return 200_000_000, true, nil
}

func TestMigrateAppliesScriptAndRecordsHistory(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		v1 := versioned(t, "1", "init", "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{v1}, applier.Hooks{}))

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&exists))
		assert.True(t, exists)

		info, err := a.Info(ctx, []*migration.ResolvedMigration{v1})
		require.NoError(t, err)
		require.Len(t, info, 1)
		assert.Equal(t, applier.StateApplied, info[0].State)
	})
}

func TestMigrateBlocksDangerVerdictWithoutForce(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		setup := versioned(t, "1", "init", "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{setup}, applier.Hooks{}))

		a.Sizer = hugeSizer{}
		drop := versioned(t, "2", "drop", "DROP TABLE widgets;")

		err := a.Migrate(ctx, []*migration.ResolvedMigration{drop}, applier.Hooks{})
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.DangerBlockedError{})

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&exists))
		assert.True(t, exists, "blocked migration must not have run")
	})
}

func TestMigrateWithForceAppliesDangerVerdict(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		setup := versioned(t, "1", "init", "CREATE TABLE widgets (id int primary key);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{setup}, applier.Hooks{}))

		a.Sizer = hugeSizer{}
		drop := versioned(t, "2", "drop", "DROP TABLE widgets;")

		err := a.Migrate(ctx, []*migration.ResolvedMigration{drop}, applier.Hooks{}, applier.WithForce())
		require.NoError(t, err)

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&exists))
		assert.False(t, exists)
	})
}

func TestMigrateFailsRequireGuard(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		m := versioned(t, "1", "guarded", "CREATE TABLE guarded (id int);")
		m.Directives.Require = []string{"false"}

		err := a.Migrate(ctx, []*migration.ResolvedMigration{m}, applier.Hooks{})
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.RequireFailedError{})
	})
}

func TestMigrateRecordsFailureOnStatementError(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		bad := versioned(t, "1", "broken", "THIS IS NOT VALID SQL;")
		err := a.Migrate(ctx, []*migration.ResolvedMigration{bad}, applier.Hooks{})
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.MigrationFailedError{})

		info, err := a.Info(ctx, []*migration.ResolvedMigration{bad})
		require.NoError(t, err)
		require.Len(t, info, 1)
		assert.Equal(t, applier.StateFailed, info[0].State)
	})
}

func TestMigrateBatchRejectsNonTransactionalStatementUpfront(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		ok := versioned(t, "1", "init", "CREATE TABLE widgets (id int);")
		bad := versioned(t, "2", "concurrent", "CREATE INDEX CONCURRENTLY idx_w ON widgets(id);")

		err := a.MigrateBatch(ctx, []*migration.ResolvedMigration{ok, bad}, applier.Hooks{})
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.NonTransactionalStatementError{})

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&exists))
		assert.False(t, exists, "pre-validation must reject before any statement runs")
	})
}

func TestMigrateBatchAppliesAllScriptsInOneTransaction(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		v1 := versioned(t, "1", "a", "CREATE TABLE a_table (id int);")
		v2 := versioned(t, "2", "b", "CREATE TABLE b_table (id int);")

		require.NoError(t, a.MigrateBatch(ctx, []*migration.ResolvedMigration{v1, v2}, applier.Hooks{}))

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'b_table')").Scan(&exists))
		assert.True(t, exists)
	})
}

// SPDX-License-Identifier: Apache-2.0

package applier_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/testutils"
)

func TestBaselineRequiresEmptyHistory(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		require.NoError(t, a.Baseline(ctx, "1", "starting point"))

		err := a.Baseline(ctx, "2", "again")
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.AlreadyBaselinedError{})
	})
}

func TestUndoReversesLastAppliedVersion(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		v1 := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		u1 := undo(t, "1", "create", "DROP TABLE widgets;")

		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{v1}, applier.Hooks{}))

		result, err := a.Undo(ctx, []*migration.ResolvedMigration{v1, u1}, applier.UndoTarget{Last: true}, applier.Hooks{})
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, result.Undone)

		var exists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&exists))
		assert.False(t, exists)
	})
}

func TestUndoReportsMissingUndoScript(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		v1 := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{v1}, applier.Hooks{}))

		_, err := a.Undo(ctx, []*migration.ResolvedMigration{v1}, applier.UndoTarget{Last: true}, applier.Hooks{})
		require.Error(t, err)
		assert.ErrorAs(t, err, &applier.UndoMissingError{})
	})
}

func TestRepairDeletesFailedRowsAndFixesChecksums(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		bad := versioned(t, "1", "broken", "NOT VALID SQL AT ALL;")
		_ = a.Migrate(ctx, []*migration.ResolvedMigration{bad}, applier.Hooks{})

		infoBefore, err := a.Info(ctx, []*migration.ResolvedMigration{bad})
		require.NoError(t, err)
		require.Len(t, infoBefore, 1)
		require.Equal(t, applier.StateFailed, infoBefore[0].State)

		require.NoError(t, a.Repair(ctx, []*migration.ResolvedMigration{bad}))

		infoAfter, err := a.Info(ctx, []*migration.ResolvedMigration{bad})
		require.NoError(t, err)
		require.Len(t, infoAfter, 1)
		assert.Equal(t, applier.StatePending, infoAfter[0].State, "failed row deleted, script pending again")
	})
}

func TestValidateReportsChecksumMismatch(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		original := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{original}, applier.Hooks{}))

		edited := versioned(t, "1", "create", "CREATE TABLE widgets (id int, name text);")
		discrepancies, err := a.Validate(ctx, []*migration.ResolvedMigration{edited})
		require.NoError(t, err)
		require.Len(t, discrepancies, 1)
		assert.Equal(t, edited.ScriptFilename, discrepancies[0].Script)
	})
}

func TestValidatePassesWhenNothingChanged(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		m := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{m}, applier.Hooks{}))

		discrepancies, err := a.Validate(ctx, []*migration.ResolvedMigration{m})
		require.NoError(t, err)
		assert.Empty(t, discrepancies)
	})
}

func TestCleanDropsEverythingIncludingHistoryTable(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		m := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{m}, applier.Hooks{}))

		dropped, err := a.Clean(ctx)
		require.NoError(t, err)
		assert.Contains(t, dropped, "widgets")

		var widgetsExist, historyExists bool
		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'widgets')").Scan(&widgetsExist))
		assert.False(t, widgetsExist)

		require.NoError(t, sqlDB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = 'waypoint' AND tablename = 'schema_history')").Scan(&historyExists))
		assert.False(t, historyExists)
	})
}

func TestInfoMergesPendingAppliedAndBaselineStates(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		applied := versioned(t, "1", "applied", "CREATE TABLE applied_t (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{applied}, applier.Hooks{}))

		pendingScript := versioned(t, "2", "pending", "CREATE TABLE pending_t (id int);")

		info, err := a.Info(ctx, []*migration.ResolvedMigration{applied, pendingScript})
		require.NoError(t, err)
		require.Len(t, info, 2)

		states := map[string]applier.InfoState{}
		for _, i := range info {
			states[i.Version] = i.State
		}
		assert.Equal(t, applier.StateApplied, states["1"])
		assert.Equal(t, applier.StatePending, states["2"])
	})
}

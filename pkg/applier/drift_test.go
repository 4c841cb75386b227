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

func TestDriftIsEmptyWhenLiveSchemaMatchesHistory(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, _ *sql.DB) {
		ctx := context.Background()

		m := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{m}, applier.Hooks{}))

		diffs, err := a.Drift(ctx, []*migration.ResolvedMigration{m})
		require.NoError(t, err)
		assert.Empty(t, diffs)
	})
}

func TestDriftDetectsManualOutOfBandChange(t *testing.T) {
	testutils.WithApplierAndConnectionToContainer(t, func(a *applier.Applier, sqlDB *sql.DB) {
		ctx := context.Background()

		m := versioned(t, "1", "create", "CREATE TABLE widgets (id int);")
		require.NoError(t, a.Migrate(ctx, []*migration.ResolvedMigration{m}, applier.Hooks{}))

		_, err := sqlDB.ExecContext(ctx, "ALTER TABLE widgets ADD COLUMN extra text;")
		require.NoError(t, err)

		diffs, err := a.Drift(ctx, []*migration.ResolvedMigration{m})
		require.NoError(t, err)
		assert.NotEmpty(t, diffs, "manually added column should surface as drift")
	})
}

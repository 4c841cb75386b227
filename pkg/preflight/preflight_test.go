// SPDX-License-Identifier: Apache-2.0

package preflight_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/preflight"
	"github.com/waypointdb/waypoint/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestConnectionStatusPassesBelowThreshold(t *testing.T) {
	c := preflight.ConnectionStatus(10, 100)
	assert.Equal(t, preflight.Pass, c.Status)
}

func TestConnectionStatusWarnsAtOrAboveThreshold(t *testing.T) {
	c := preflight.ConnectionStatus(80, 100)
	assert.Equal(t, preflight.Warn, c.Status)

	c = preflight.ConnectionStatus(95, 100)
	assert.Equal(t, preflight.Warn, c.Status)
}

func TestReplicationLagStatusPassesBelowThreshold(t *testing.T) {
	c := preflight.ReplicationLagStatus(10*1024*1024, 100)
	assert.Equal(t, preflight.Pass, c.Status)
}

func TestReplicationLagStatusWarnsAboveThreshold(t *testing.T) {
	c := preflight.ReplicationLagStatus(200*1024*1024, 100)
	assert.Equal(t, preflight.Warn, c.Status)
}

func TestFormatDatabaseSize(t *testing.T) {
	assert.Equal(t, "5MB", preflight.FormatDatabaseSize(5*1024*1024))
	assert.Equal(t, "2.0GB", preflight.FormatDatabaseSize(2*1024*1024*1024))
}

func TestRunAgainstLiveDatabase(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}

		report := preflight.Run(ctx, rdb, preflight.DefaultConfig())
		require.Len(t, report.Checks, 6)
		assert.True(t, report.Passed, "a fresh test database should pass every check")
	})
}

// SPDX-License-Identifier: Apache-2.0

package migration_test

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func TestScanParsesDirectiveComments(t *testing.T) {
	dir := fstest.MapFS{
		"V1__Guarded.sql": {Data: []byte(
			"-- waypoint:depends V0\n" +
				"-- waypoint:env staging, production\n" +
				"-- waypoint:require current_setting('app.tenant', true) IS NOT NULL\n" +
				"-- waypoint:safety-override\n" +
				"ALTER TABLE widgets ADD COLUMN tenant_id int;",
		)},
	}

	all, err := migration.Scan([]fs.FS{dir})
	require.NoError(t, err)
	require.Len(t, all, 1)

	d := all[0].Directives
	require.Len(t, d.Depends, 1)
	assert.Equal(t, "0", d.Depends[0].String())
	assert.Equal(t, []string{"staging", "production"}, d.Env)
	require.Len(t, d.Require, 1)
	assert.True(t, d.SafetyOverride)
}

func TestMatchesEnvAllowsEveryEnvironmentWhenUnset(t *testing.T) {
	d := migration.Directives{}
	assert.True(t, d.MatchesEnv("production"))
	assert.True(t, d.MatchesEnv(""))
}

func TestMatchesEnvIsCaseInsensitive(t *testing.T) {
	d := migration.Directives{Env: []string{"staging"}}
	assert.True(t, d.MatchesEnv("STAGING"))
	assert.False(t, d.MatchesEnv("production"))
}

func TestKindStringNames(t *testing.T) {
	assert.Equal(t, "versioned", migration.KindVersioned.String())
	assert.Equal(t, "repeatable", migration.KindRepeatable.String())
	assert.Equal(t, "undo", migration.KindUndo.String())
}

func TestHasVersionFalseForRepeatableOnly(t *testing.T) {
	r := migration.ResolvedMigration{Kind: migration.KindRepeatable}
	assert.False(t, r.HasVersion())

	v := migration.ResolvedMigration{Kind: migration.KindVersioned}
	assert.True(t, v.HasVersion())
}

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

func TestScanClassifiesAndOrders(t *testing.T) {
	dir := fstest.MapFS{
		"V2__Alter.sql":  {Data: []byte("ALTER TABLE t ADD c text;")},
		"V1__Create.sql": {Data: []byte("CREATE TABLE t (id int);")},
		"R__View.sql":    {Data: []byte("CREATE OR REPLACE VIEW v AS SELECT id FROM t;")},
		"U2__Alter.sql":  {Data: []byte("ALTER TABLE t DROP COLUMN c;")},
		"helper.txt":     {Data: []byte("not sql")},
	}

	all, err := migration.Scan([]fs.FS{dir})
	require.NoError(t, err)

	versioned := migration.Versioned(all)
	require.Len(t, versioned, 2)
	assert.Equal(t, "1", versioned[0].Version.String())
	assert.Equal(t, "2", versioned[1].Version.String())
	assert.Equal(t, "Create", versioned[0].Description)

	repeatables := migration.Repeatables(all)
	require.Len(t, repeatables, 1)
	assert.Equal(t, "View", repeatables[0].Description)

	undo := migration.FindUndo(all, migration.MustParseVersion("2"))
	require.NotNil(t, undo)
	assert.Contains(t, undo.SQL, "DROP COLUMN")
}

func TestScanRejectsDuplicateVersions(t *testing.T) {
	dir := fstest.MapFS{
		"V1__A.sql": {Data: []byte("CREATE TABLE a (id int);")},
		"V1__B.sql": {Data: []byte("CREATE TABLE b (id int);")},
	}

	_, err := migration.Scan([]fs.FS{dir})
	require.Error(t, err)
	var dup migration.DuplicateVersionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "1", dup.Version)
}

func TestScanIgnoresUnmatchedHelperFiles(t *testing.T) {
	dir := fstest.MapFS{
		"V1__A.sql":  {Data: []byte("CREATE TABLE a (id int);")},
		"config.sql": {Data: []byte("-- not a migration")},
	}

	all, err := migration.Scan([]fs.FS{dir})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScanRejectsMalformedVPrefixedFile(t *testing.T) {
	dir := fstest.MapFS{
		"Vbad.sql": {Data: []byte("CREATE TABLE a (id int);")},
	}

	_, err := migration.Scan([]fs.FS{dir})
	require.Error(t, err)
	var bad migration.InvalidFilenameError
	require.ErrorAs(t, err, &bad)
}

func TestScanExcludesHookFiles(t *testing.T) {
	dir := fstest.MapFS{
		"beforeMigrate.sql": {Data: []byte("SELECT 1;")},
		"V1__A.sql":         {Data: []byte("CREATE TABLE a (id int);")},
	}

	all, err := migration.Scan([]fs.FS{dir})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// SPDX-License-Identifier: Apache-2.0

package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func TestParseVersionTrailingZeros(t *testing.T) {
	v1, err := migration.ParseVersion("1")
	require.NoError(t, err)

	v2, err := migration.ParseVersion("1.0")
	require.NoError(t, err)

	assert.True(t, v1.Equal(v2))
	assert.Equal(t, "1", v1.String())
	assert.Equal(t, "1", v2.String())
}

func TestCompareOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2", "1", 1},
		{"1.9", "1.10", -1},
		{"2.1.3", "2.1.3", 0},
		{"2.1", "2.1.0", 0},
	}

	for _, c := range cases {
		a := migration.MustParseVersion(c.a)
		b := migration.MustParseVersion(c.b)
		assert.Equal(t, c.want, a.Compare(b), "%s vs %s", c.a, c.b)
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	_, err := migration.ParseVersion("1.x")
	assert.Error(t, err)

	_, err = migration.ParseVersion("")
	assert.Error(t, err)
}

func TestSortVersions(t *testing.T) {
	vs := []migration.Version{
		migration.MustParseVersion("2.1.3"),
		migration.MustParseVersion("1"),
		migration.MustParseVersion("1.10"),
		migration.MustParseVersion("1.9"),
	}
	migration.SortVersions(vs)

	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"1", "1.9", "1.10", "2.1.3"}, got)
}

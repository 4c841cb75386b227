// SPDX-License-Identifier: Apache-2.0

package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypointdb/waypoint/pkg/depgraph"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func versioned(v string, depends ...string) *migration.ResolvedMigration {
	var deps []migration.Version
	for _, d := range depends {
		deps = append(deps, migration.MustParseVersion(d))
	}
	return &migration.ResolvedMigration{
		Kind:    migration.KindVersioned,
		Version: migration.MustParseVersion(v),
		Directives: migration.Directives{
			Depends: deps,
		},
	}
}

func versionStrings(vs []migration.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func TestTopoOrderRespectsExplicitDependencies(t *testing.T) {
	scripts := []*migration.ResolvedMigration{
		versioned("3", "1"),
		versioned("1"),
		versioned("2", "1"),
	}

	g, err := depgraph.Build(scripts, false)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)

	got := versionStrings(order)
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestTopoOrderImplicitChaining(t *testing.T) {
	scripts := []*migration.ResolvedMigration{
		versioned("1"),
		versioned("2"),
		versioned("3"),
	}

	g, err := depgraph.Build(scripts, true)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, versionStrings(order))
}

func TestImplicitChainingSkippedWhenExplicitDependsPresent(t *testing.T) {
	// 3 explicitly depends on 1, so implicit chaining must not also add 3->2.
	scripts := []*migration.ResolvedMigration{
		versioned("1"),
		versioned("2"),
		versioned("3", "1"),
	}

	g, err := depgraph.Build(scripts, true)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, versionStrings(order))
}

func TestBuildRejectsMissingDependency(t *testing.T) {
	scripts := []*migration.ResolvedMigration{
		versioned("2", "1"),
	}

	_, err := depgraph.Build(scripts, false)
	require.Error(t, err)

	var missing depgraph.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "1", missing.DependsOn)
}

func TestTopoOrderDetectsCycle(t *testing.T) {
	scripts := []*migration.ResolvedMigration{
		versioned("1", "2"),
		versioned("2", "1"),
	}

	g, err := depgraph.Build(scripts, false)
	require.NoError(t, err)

	_, err = g.TopoOrder()
	require.Error(t, err)

	var cyc depgraph.CycleError
	require.ErrorAs(t, err, &cyc)
	assert.NotEmpty(t, cyc.Path)
}

func TestTopoOrderBreaksTiesByVersion(t *testing.T) {
	scripts := []*migration.ResolvedMigration{
		versioned("5"),
		versioned("1"),
		versioned("3"),
	}

	g, err := depgraph.Build(scripts, false)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "5"}, versionStrings(order))
}

// SPDX-License-Identifier: Apache-2.0

// Package depgraph builds the dependency DAG over versioned scripts (their
// `depends` directives) and produces a topological order (spec.md §4.10).
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/waypointdb/waypoint/pkg/migration"
)

// MissingDependencyError reports a `depends` directive naming a version that
// does not exist among the versioned scripts being ordered.
type MissingDependencyError struct {
	Version   string
	DependsOn string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("migration %s depends on missing version %s", e.Version, e.DependsOn)
}

// CycleError reports a dependency cycle, with a concrete path through it.
type CycleError struct {
	Path []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Graph is a dependency DAG over versioned scripts, node per version,
// edge a -> b when a declares `depends b` (a must run after b).
type Graph struct {
	nodes []migration.Version
	// edges[a] = list of versions a depends on (must precede a).
	edges map[string][]string
	byKey map[string]migration.Version
}

// Build constructs the dependency graph from a set of versioned scripts.
// When implicitChaining is true, any version with no explicit `depends`
// directive gets an implicit edge to the immediately preceding version in
// version order.
func Build(scripts []*migration.ResolvedMigration, implicitChaining bool) (*Graph, error) {
	versioned := make([]*migration.ResolvedMigration, 0, len(scripts))
	for _, s := range scripts {
		if s.Kind == migration.KindVersioned {
			versioned = append(versioned, s)
		}
	}

	sorted := make([]*migration.ResolvedMigration, len(versioned))
	copy(sorted, versioned)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version.Less(sorted[j].Version) })

	g := &Graph{
		edges: make(map[string][]string),
		byKey: make(map[string]migration.Version),
	}

	for _, s := range sorted {
		key := s.Version.String()
		g.nodes = append(g.nodes, s.Version)
		g.byKey[key] = s.Version
	}

	for i, s := range sorted {
		key := s.Version.String()

		deps := s.Directives.Depends
		if len(deps) == 0 && implicitChaining && i > 0 {
			deps = []migration.Version{sorted[i-1].Version}
		}

		for _, d := range deps {
			depKey := d.String()
			if _, ok := g.byKey[depKey]; !ok {
				return nil, MissingDependencyError{Version: key, DependsOn: depKey}
			}
			g.edges[key] = append(g.edges[key], depKey)
		}
	}

	return g, nil
}

// TopoOrder returns versions in an order where every version appears after
// everything it depends on, using Kahn's algorithm. Ties among versions with
// no remaining ordering constraint break in ascending version order, for a
// deterministic result.
func (g *Graph) TopoOrder() ([]migration.Version, error) {
	// inDegree[v] counts how many not-yet-emitted dependencies v still has.
	inDegree := make(map[string]int, len(g.nodes))
	// dependents[d] = versions that depend on d (edges reversed).
	dependents := make(map[string][]string)

	for _, n := range g.nodes {
		key := n.String()
		inDegree[key] = len(g.edges[key])
	}
	for v, deps := range g.edges {
		for _, d := range deps {
			dependents[d] = append(dependents[d], v)
		}
	}

	var ready []string
	for _, n := range g.nodes {
		key := n.String()
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	}

	var order []migration.Version
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return g.byKey[ready[i]].Less(g.byKey[ready[j]]) })
		key := ready[0]
		ready = ready[1:]

		order = append(order, g.byKey[key])

		for _, dep := range dependents[key] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, CycleError{Path: g.findCyclePath(inDegree)}
	}

	return order, nil
}

// findCyclePath walks the residual subgraph (nodes with non-zero in-degree
// after Kahn's algorithm drains all resolvable nodes) to materialize a
// concrete cycle for the error message.
func (g *Graph) findCyclePath(residualInDegree map[string]int) []string {
	var start string
	for _, n := range g.nodes {
		key := n.String()
		if residualInDegree[key] > 0 {
			start = key
			break
		}
	}
	if start == "" {
		return nil
	}

	visited := map[string]bool{}
	path := []string{start}
	current := start

	for {
		visited[current] = true
		deps := g.edges[current]
		var next string
		for _, d := range deps {
			if residualInDegree[d] > 0 {
				next = d
				break
			}
		}
		if next == "" {
			break
		}
		if visited[next] {
			path = append(path, next)
			break
		}
		path = append(path, next)
		current = next
	}

	return path
}

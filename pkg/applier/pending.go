// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"sort"
	"strings"

	"github.com/waypointdb/waypoint/pkg/depgraph"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/state"
)

// OutOfOrderError reports a pending versioned script whose version is older
// than the highest already-applied version, with out_of_order disabled.
type OutOfOrderError struct {
	Version string
	Highest string
}

func (e OutOfOrderError) Error() string {
	return "migration " + e.Version + " is out of order (highest applied: " + e.Highest + ") and out-of-order is disabled"
}

// Pending resolves the filesystem, reads the full history, and returns the
// ordered list of scripts that should run next (spec.md §4.7 steps 1-6).
func (a *Applier) Pending(ctx context.Context, all []*migration.ResolvedMigration) ([]*migration.ResolvedMigration, error) {
	entries, err := a.State.All(ctx)
	if err != nil {
		return nil, wrapf(err, "reading history")
	}
	applied := state.EffectiveApplied(entries)

	baseline := baselineVersion(entries)
	highest := highestApplied(applied)

	var pendingVersioned []*migration.ResolvedMigration
	for _, m := range migration.Versioned(all) {
		if !m.Directives.MatchesEnv(a.Config.Environment) {
			continue
		}

		key := TypeVersioned + ":" + m.Version.String()
		if _, ok := applied[key]; ok {
			continue
		}
		if baseline != nil && m.Version.LessEq(*baseline) {
			continue
		}
		if a.Config.Target != nil {
			target, err := migration.ParseVersion(*a.Config.Target)
			if err == nil && m.Version.Compare(target) > 0 {
				continue
			}
		}
		if highest != nil && m.Version.Less(*highest) && !a.Config.OutOfOrder {
			return nil, OutOfOrderError{Version: m.Version.String(), Highest: highest.String()}
		}

		pendingVersioned = append(pendingVersioned, m)
	}

	if a.Config.DependencyOrdering {
		ordered, err := orderByDependencies(pendingVersioned)
		if err != nil {
			return nil, err
		}
		pendingVersioned = ordered
	} else {
		sort.Slice(pendingVersioned, func(i, j int) bool {
			return pendingVersioned[i].Version.Less(pendingVersioned[j].Version)
		})
	}

	var pendingRepeatable []*migration.ResolvedMigration
	for _, m := range migration.Repeatables(all) {
		if !m.Directives.MatchesEnv(a.Config.Environment) {
			continue
		}

		key := TypeRepeatable + ":" + m.ScriptFilename
		row, ok := applied[key]
		if ok && (row.Checksum == nil || *row.Checksum == m.Checksum) {
			continue
		}
		pendingRepeatable = append(pendingRepeatable, m)
	}

	return append(pendingVersioned, pendingRepeatable...), nil
}

func orderByDependencies(pending []*migration.ResolvedMigration) ([]*migration.ResolvedMigration, error) {
	g, err := depgraph.Build(pending, false)
	if err != nil {
		return nil, err
	}
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*migration.ResolvedMigration, len(pending))
	for _, m := range pending {
		byVersion[m.Version.String()] = m
	}

	out := make([]*migration.ResolvedMigration, 0, len(order))
	for _, v := range order {
		out = append(out, byVersion[v.String()])
	}
	return out, nil
}

func baselineVersion(entries []state.Entry) *migration.Version {
	var latest *state.Entry
	for i := range entries {
		e := entries[i]
		if e.Type != TypeBaseline || e.Version == nil {
			continue
		}
		if latest == nil || e.InstalledRank > latest.InstalledRank {
			latest = &e
		}
	}
	if latest == nil {
		return nil
	}
	v := migration.MustParseVersion(*latest.Version)
	return &v
}

func highestApplied(applied map[string]state.Entry) *migration.Version {
	var highest *migration.Version
	for key, e := range applied {
		if e.Version == nil || !strings.HasPrefix(key, TypeVersioned+":") {
			continue
		}
		v := migration.MustParseVersion(*e.Version)
		if highest == nil || highest.Less(v) {
			highest = &v
		}
	}
	return highest
}

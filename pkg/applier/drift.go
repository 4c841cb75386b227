// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"sort"
	"strings"

	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/schema"
	"github.com/waypointdb/waypoint/pkg/state"
)

// ExpectedDDL returns the substituted SQL bodies of every effectively-applied
// migration, ordered by installed_rank, for replay into a scratch schema by
// schema.Drift (spec.md §4.9's drift-detection command).
func (a *Applier) ExpectedDDL(ctx context.Context, all []*migration.ResolvedMigration) ([]string, error) {
	entries, err := a.State.All(ctx)
	if err != nil {
		return nil, wrapf(err, "reading history")
	}
	applied := state.EffectiveApplied(entries)

	byScript := make(map[string]*migration.ResolvedMigration, len(all))
	for _, m := range all {
		byScript[m.ScriptFilename] = m
	}

	var rows []state.Entry
	for key, e := range applied {
		if !strings.HasPrefix(key, TypeVersioned+":") && !strings.HasPrefix(key, TypeRepeatable+":") {
			continue
		}
		if !e.Success {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].InstalledRank < rows[j].InstalledRank })

	ddl := make([]string, 0, len(rows))
	for _, e := range rows {
		m, ok := byScript[e.Script]
		if !ok {
			continue
		}
		sql, err := a.substitute(m)
		if err != nil {
			return nil, wrapf(err, "substituting placeholders in %s", m.ScriptFilename)
		}
		ddl = append(ddl, sql)
	}

	return ddl, nil
}

// Drift replays the expected forward DDL into a scratch schema and diffs it
// against the live schema, filtering out the history table itself.
func (a *Applier) Drift(ctx context.Context, all []*migration.ResolvedMigration) ([]schema.SchemaDiff, error) {
	expected, err := a.ExpectedDDL(ctx, all)
	if err != nil {
		return nil, err
	}
	return schema.Drift(ctx, a.DB, a.Config.Schema, expected, a.State.Table)
}

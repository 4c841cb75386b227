// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/schema"
	"github.com/waypointdb/waypoint/pkg/state"
)

// AlreadyBaselinedError reports a baseline attempt against a non-empty history.
type AlreadyBaselinedError struct{}

func (AlreadyBaselinedError) Error() string {
	return "baseline requires an empty history"
}

// Baseline inserts the single BASELINE row marking the starting point of a
// migrated database (spec.md §4.9).
func (a *Applier) Baseline(ctx context.Context, version string, description string) error {
	entries, err := a.State.All(ctx)
	if err != nil {
		return wrapf(err, "reading history")
	}
	if len(entries) != 0 {
		return AlreadyBaselinedError{}
	}

	v := version
	return a.State.Insert(ctx, state.Entry{
		Version:       &v,
		Description:   description,
		Type:          TypeBaseline,
		Script:        "<< baseline >>",
		InstalledBy:   a.InstalledBy,
		ExecutionTime: 0,
		Success:       true,
	})
}

// UndoTarget selects which effectively-applied versions an Undo call reverses.
type UndoTarget struct {
	Last    bool
	Count   int
	Version string
}

// UndoMissingError reports an effectively-applied version with no paired
// undo script.
type UndoMissingError struct {
	Version string
}

func (e UndoMissingError) Error() string {
	return "undo script missing for version " + e.Version
}

// UndoResult reports what Undo actually reversed.
type UndoResult struct {
	Undone []string
}

// Undo reverses effectively-applied versions newest-first, per target
// (spec.md §4.9). Each undo script runs through the same per-script protocol
// as a forward migration, recorded with type UNDO_SQL.
func (a *Applier) Undo(ctx context.Context, all []*migration.ResolvedMigration, target UndoTarget, hooks Hooks, opts ...ApplyOption) (UndoResult, error) {
	entries, err := a.State.All(ctx)
	if err != nil {
		return UndoResult{}, wrapf(err, "reading history")
	}
	applied := state.EffectiveApplied(entries)

	var versions []migration.Version
	for key, e := range applied {
		if e.Version == nil || !strings.HasPrefix(key, TypeVersioned+":") {
			continue
		}
		versions = append(versions, migration.MustParseVersion(*e.Version))
	}
	sort.Slice(versions, func(i, j int) bool { return versions[j].Less(versions[i]) })

	var toUndo []migration.Version
	switch {
	case target.Version != "":
		want := migration.MustParseVersion(target.Version)
		for _, v := range versions {
			if v.Equal(want) {
				toUndo = []migration.Version{v}
				break
			}
		}
	case target.Last:
		if len(versions) > 0 {
			toUndo = versions[:1]
		}
	case target.Count > 0:
		n := target.Count
		if n > len(versions) {
			n = len(versions)
		}
		toUndo = versions[:n]
	}

	byUndoFile := make(map[string]*migration.ResolvedMigration)
	for _, m := range all {
		if m.Kind == migration.KindUndo {
			byUndoFile[m.Version.String()] = m
		}
	}

	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	var result UndoResult
	for _, v := range toUndo {
		script, ok := byUndoFile[v.String()]
		if !ok {
			return result, UndoMissingError{Version: v.String()}
		}
		if err := a.applyOne(ctx, script, hooks, o); err != nil {
			return result, err
		}
		result.Undone = append(result.Undone, v.String())
	}
	return result, nil
}

// Repair deletes failed history rows and re-syncs checksums of mismatched
// successful rows against the current on-disk scripts (spec.md §4.9).
// Idempotent.
func (a *Applier) Repair(ctx context.Context, all []*migration.ResolvedMigration) error {
	entries, err := a.State.All(ctx)
	if err != nil {
		return wrapf(err, "reading history")
	}

	if err := a.State.DeleteFailed(ctx); err != nil {
		return wrapf(err, "deleting failed history rows")
	}

	byScript := make(map[string]*migration.ResolvedMigration, len(all))
	for _, m := range all {
		byScript[m.ScriptFilename] = m
	}

	for _, e := range entries {
		if !e.Success {
			continue
		}
		m, ok := byScript[e.Script]
		if !ok {
			continue
		}
		if e.Checksum == nil || *e.Checksum != m.Checksum {
			if err := a.State.UpdateChecksum(ctx, e.InstalledRank, m.Checksum); err != nil {
				return wrapf(err, "repairing checksum for %s", e.Script)
			}
		}
	}
	return nil
}

// ValidationDiscrepancy reports one problem found by Validate.
type ValidationDiscrepancy struct {
	Script string
	Reason string
}

// Validate checks every successful, versioned history row against the
// resolved scripts on disk, reporting checksum mismatches, missing files,
// and below-baseline scripts that were never applied (spec.md §4.9).
func (a *Applier) Validate(ctx context.Context, all []*migration.ResolvedMigration) ([]ValidationDiscrepancy, error) {
	entries, err := a.State.All(ctx)
	if err != nil {
		return nil, wrapf(err, "reading history")
	}

	byScript := make(map[string]*migration.ResolvedMigration, len(all))
	for _, m := range all {
		byScript[m.ScriptFilename] = m
	}

	var discrepancies []ValidationDiscrepancy
	for _, e := range entries {
		if !e.Success || e.Version == nil {
			continue
		}
		m, ok := byScript[e.Script]
		if !ok {
			discrepancies = append(discrepancies, ValidationDiscrepancy{
				Script: e.Script,
				Reason: "Missing: resolved script no longer exists on disk",
			})
			continue
		}
		if e.Checksum != nil && *e.Checksum != m.Checksum {
			discrepancies = append(discrepancies, ValidationDiscrepancy{
				Script: e.Script,
				Reason: fmt.Sprintf("checksum mismatch: expected=%d found=%d", *e.Checksum, m.Checksum),
			})
		}
	}

	if baseline := baselineVersion(entries); baseline != nil {
		applied := state.EffectiveApplied(entries)
		for _, m := range migration.Versioned(all) {
			if _, ok := applied[TypeVersioned+":"+m.Version.String()]; ok {
				continue
			}
			if m.Version.LessEq(*baseline) {
				discrepancies = append(discrepancies, ValidationDiscrepancy{
					Script: m.ScriptFilename,
					Reason: "BelowBaseline: resolved script at or below the baseline was never applied",
				})
			}
		}
	}

	return discrepancies, nil
}

// Clean drops every object owned by the configured schema, including the
// history table, and returns the dropped object identifiers. The caller
// must have already confirmed authorization (spec.md §4.9); Clean itself
// performs no confirmation prompt.
func (a *Applier) Clean(ctx context.Context) ([]string, error) {
	snap, err := schema.Introspect(ctx, a.DB, a.Config.Schema)
	if err != nil {
		return nil, wrapf(err, "introspecting schema before clean")
	}

	var dropped []string
	exec := func(stmt, ident string) error {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
		dropped = append(dropped, ident)
		return nil
	}

	for name := range snap.Triggers {
		t := snap.Triggers[name]
		if err := exec(fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s.%s", name, a.Config.Schema, t.Table), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Views {
		if err := exec(fmt.Sprintf("DROP VIEW IF EXISTS %s.%s CASCADE", a.Config.Schema, name), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Tables {
		if err := exec(fmt.Sprintf("DROP TABLE IF EXISTS %s.%s CASCADE", a.Config.Schema, name), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Sequences {
		if err := exec(fmt.Sprintf("DROP SEQUENCE IF EXISTS %s.%s CASCADE", a.Config.Schema, name), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Functions {
		if err := exec(fmt.Sprintf("DROP FUNCTION IF EXISTS %s.%s CASCADE", a.Config.Schema, name), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Enums {
		if err := exec(fmt.Sprintf("DROP TYPE IF EXISTS %s.%s CASCADE", a.Config.Schema, name), name); err != nil {
			return dropped, err
		}
	}
	for name := range snap.Extensions {
		if err := exec(fmt.Sprintf("DROP EXTENSION IF EXISTS %s CASCADE", name), name); err != nil {
			return dropped, err
		}
	}

	dropped = append(dropped, a.State.Qualified())
	if _, err := a.DB.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", a.State.Qualified())); err != nil {
		return dropped, err
	}

	return dropped, nil
}

// Info merges resolved scripts and history rows into the ordered,
// exhaustive-state report described in spec.md §4.9.
func (a *Applier) Info(ctx context.Context, all []*migration.ResolvedMigration) ([]MigrationInfo, error) {
	entries, err := a.State.All(ctx)
	if err != nil {
		return nil, wrapf(err, "reading history")
	}
	applied := state.EffectiveApplied(entries)
	baseline := baselineVersion(entries)
	highest := highestApplied(applied)

	byKey := make(map[string]state.Entry)
	for _, e := range entries {
		key := e.Type
		if e.Version != nil {
			key = e.Type + ":" + *e.Version
		} else {
			key = e.Type + ":" + e.Script
		}
		if cur, ok := byKey[key]; !ok || e.InstalledRank > cur.InstalledRank {
			byKey[key] = e
		}
	}

	var out []MigrationInfo
	for _, m := range migration.Versioned(all) {
		key := TypeVersioned + ":" + m.Version.String()
		row, hasRow := byKey[key]

		info := MigrationInfo{
			Version:     m.Version.String(),
			Description: m.Description,
			Type:        TypeVersioned,
			Script:      m.ScriptFilename,
			Checksum:    &m.Checksum,
		}

		switch {
		case hasRow && !row.Success:
			info.State = StateFailed
		case hasRow && row.Success:
			info.State = StateApplied
			t := row.InstalledOn
			info.InstalledOn = &t
			info.ExecutionTime = row.ExecutionTime
		case baseline != nil && m.Version.LessEq(*baseline):
			info.State = StateBelowBase
		case !m.Directives.MatchesEnv(a.Config.Environment):
			info.State = StateIgnored
		case highest != nil && m.Version.Less(*highest):
			info.State = StateOutOfOrder
		default:
			info.State = StatePending
		}
		out = append(out, info)
	}

	for _, m := range migration.Repeatables(all) {
		key := TypeRepeatable + ":" + m.ScriptFilename
		row, hasRow := byKey[key]

		info := MigrationInfo{
			Description: m.Description,
			Type:        TypeRepeatable,
			Script:      m.ScriptFilename,
			Checksum:    &m.Checksum,
		}

		switch {
		case !m.Directives.MatchesEnv(a.Config.Environment):
			info.State = StateIgnored
		case hasRow && !row.Success:
			info.State = StateFailed
		case hasRow && row.Checksum != nil && *row.Checksum != m.Checksum:
			info.State = StateOutdated
		case hasRow && row.Success:
			info.State = StateApplied
			t := row.InstalledOn
			info.InstalledOn = &t
			info.ExecutionTime = row.ExecutionTime
		default:
			info.State = StatePending
		}
		out = append(out, info)
	}

	for _, row := range byKey {
		if row.Type != TypeUndo {
			continue
		}
		info := MigrationInfo{
			Version:       valueOr(row.Version),
			Description:   row.Description,
			Type:          TypeUndo,
			Script:        row.Script,
			State:         StateUndone,
			ExecutionTime: row.ExecutionTime,
		}
		t := row.InstalledOn
		info.InstalledOn = &t
		out = append(out, info)
	}

	if baseline != nil {
		if row, ok := byKey[TypeBaseline+":"+baseline.String()]; ok {
			t := row.InstalledOn
			out = append(out, MigrationInfo{
				Version:     baseline.String(),
				Description: row.Description,
				Type:        TypeBaseline,
				Script:      row.Script,
				State:       StateBaselineRow,
				InstalledOn: &t,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, iok := parseInfoVersion(out[i].Version)
		vj, jok := parseInfoVersion(out[j].Version)
		if iok && jok {
			return vi.Less(vj)
		}
		if iok != jok {
			return iok
		}
		return out[i].Description < out[j].Description
	})

	return out, nil
}

func parseInfoVersion(s string) (migration.Version, bool) {
	if s == "" {
		return migration.Version{}, false
	}
	v, err := migration.ParseVersion(s)
	if err != nil {
		return migration.Version{}, false
	}
	return v, true
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

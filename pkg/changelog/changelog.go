// SPDX-License-Identifier: Apache-2.0

// Package changelog renders human-readable release notes from the DDL
// operations a set of migration scripts contains, for the read-only
// "changelog" command (spec.md §5).
package changelog

import (
	"fmt"
	"strings"

	"github.com/waypointdb/waypoint/pkg/ddl"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/sqlsegment"
)

// Format selects the changelog's rendering.
type Format int

const (
	Markdown Format = iota
	PlainText
	JSON
)

// ParseFormat maps a user-supplied format name to a Format, defaulting to
// PlainText for anything unrecognized, matching the teacher's permissive
// flag-parsing style elsewhere in this engine.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "markdown", "md":
		return Markdown
	case "json":
		return JSON
	default:
		return PlainText
	}
}

// VersionChanges is the set of DDL operations a single script performs.
type VersionChanges struct {
	Version     string // empty for repeatable scripts
	Description string
	Script      string
	Changes     []ddl.Operation
}

// Report is the complete changelog across every considered script.
type Report struct {
	Versions     []VersionChanges
	TotalChanges int
}

// Build scans all (excluding undo scripts) and extracts their DDL
// operations, optionally restricted to versioned scripts whose version
// falls within [from, to] (either bound may be the zero Version to mean
// unbounded). Repeatable scripts are never filtered by range.
func Build(all []*migration.ResolvedMigration, from, to migration.Version) Report {
	var versions []VersionChanges
	total := 0

	for _, m := range all {
		if m.Kind == migration.KindUndo {
			continue
		}

		if m.HasVersion() {
			if !from.IsZero() && m.Version.Less(from) {
				continue
			}
			if !to.IsZero() && to.Less(m.Version) {
				continue
			}
		}

		changes := extractOperations(m.SQL)
		total += len(changes)

		version := ""
		if m.HasVersion() {
			version = m.Version.String()
		}

		versions = append(versions, VersionChanges{
			Version:     version,
			Description: m.Description,
			Script:      m.ScriptFilename,
			Changes:     changes,
		})
	}

	return Report{Versions: versions, TotalChanges: total}
}

func extractOperations(sql string) []ddl.Operation {
	var ops []ddl.Operation
	for _, stmt := range sqlsegment.Split(sql) {
		op := ddl.Classify(stmt)
		if op.Kind == ddl.KindOther {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

// RenderMarkdown renders report as a Markdown document.
func RenderMarkdown(report Report) string {
	var b strings.Builder
	b.WriteString("# Changelog\n\n")

	for _, vc := range report.Versions {
		if vc.Version != "" {
			fmt.Fprintf(&b, "## V%s — %s\n", vc.Version, vc.Description)
		} else {
			fmt.Fprintf(&b, "## (Repeatable) — %s\n", vc.Description)
		}
		fmt.Fprintf(&b, "_Source: %s_\n\n", vc.Script)

		if len(vc.Changes) == 0 {
			b.WriteString("- No DDL changes detected\n")
		} else {
			for _, c := range vc.Changes {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n_Total: %d change(s) across %d migration(s)_\n", report.TotalChanges, len(report.Versions))
	return b.String()
}

// RenderPlainText renders report as plain text.
func RenderPlainText(report Report) string {
	var b strings.Builder
	b.WriteString("CHANGELOG\n=========\n\n")

	for _, vc := range report.Versions {
		if vc.Version != "" {
			fmt.Fprintf(&b, "V%s - %s\n", vc.Version, vc.Description)
		} else {
			fmt.Fprintf(&b, "(Repeatable) - %s\n", vc.Description)
		}
		fmt.Fprintf(&b, "  Source: %s\n", vc.Script)

		if len(vc.Changes) == 0 {
			b.WriteString("  No DDL changes detected\n")
		} else {
			for _, c := range vc.Changes {
				fmt.Fprintf(&b, "  * %s\n", c)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total: %d change(s) across %d migration(s)\n", report.TotalChanges, len(report.Versions))
	return b.String()
}

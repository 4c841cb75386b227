// SPDX-License-Identifier: Apache-2.0

package changelog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/changelog"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func TestBuildBasic(t *testing.T) {
	all := []*migration.ResolvedMigration{
		{
			Kind: migration.KindVersioned, Version: migration.MustParseVersion("1"),
			Description: "Create users", ScriptFilename: "V1__Create_users.sql",
			SQL: "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT);",
		},
		{
			Kind: migration.KindVersioned, Version: migration.MustParseVersion("2"),
			Description: "Add email", ScriptFilename: "V2__Add_email.sql",
			SQL: "ALTER TABLE users ADD COLUMN email VARCHAR(255);",
		},
	}

	report := changelog.Build(all, migration.Version{}, migration.Version{})
	require.Len(t, report.Versions, 2)
	assert.GreaterOrEqual(t, report.TotalChanges, 2)
}

func TestBuildVersionRange(t *testing.T) {
	all := []*migration.ResolvedMigration{
		{Kind: migration.KindVersioned, Version: migration.MustParseVersion("1"), Description: "First", ScriptFilename: "V1__First.sql", SQL: "CREATE TABLE t1 (id SERIAL);"},
		{Kind: migration.KindVersioned, Version: migration.MustParseVersion("2"), Description: "Second", ScriptFilename: "V2__Second.sql", SQL: "CREATE TABLE t2 (id SERIAL);"},
		{Kind: migration.KindVersioned, Version: migration.MustParseVersion("3"), Description: "Third", ScriptFilename: "V3__Third.sql", SQL: "CREATE TABLE t3 (id SERIAL);"},
	}

	v2 := migration.MustParseVersion("2")
	report := changelog.Build(all, v2, v2)
	require.Len(t, report.Versions, 1)
	assert.Equal(t, "2", report.Versions[0].Version)
}

func TestBuildSkipsUndoScripts(t *testing.T) {
	all := []*migration.ResolvedMigration{
		{Kind: migration.KindUndo, Version: migration.MustParseVersion("1"), ScriptFilename: "U1__Drop.sql", SQL: "DROP TABLE t1;"},
	}
	report := changelog.Build(all, migration.Version{}, migration.Version{})
	assert.Empty(t, report.Versions)
}

func TestRenderMarkdown(t *testing.T) {
	all := []*migration.ResolvedMigration{
		{Kind: migration.KindVersioned, Version: migration.MustParseVersion("1"), Description: "Create users", ScriptFilename: "V1__Create_users.sql", SQL: "CREATE TABLE users (id int);"},
	}
	report := changelog.Build(all, migration.Version{}, migration.Version{})

	md := changelog.RenderMarkdown(report)
	assert.Contains(t, md, "# Changelog")
	assert.Contains(t, md, "## V1")
	assert.Contains(t, md, "CREATE TABLE users")
}

func TestRenderPlainText(t *testing.T) {
	all := []*migration.ResolvedMigration{
		{Kind: migration.KindRepeatable, Description: "Refresh view", ScriptFilename: "R__View.sql", SQL: "CREATE OR REPLACE VIEW v AS SELECT 1;"},
	}
	report := changelog.Build(all, migration.Version{}, migration.Version{})

	text := changelog.RenderPlainText(report)
	assert.Contains(t, text, "CHANGELOG")
	assert.Contains(t, text, "(Repeatable) - Refresh view")
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, changelog.Markdown, changelog.ParseFormat("md"))
	assert.Equal(t, changelog.JSON, changelog.ParseFormat("JSON"))
	assert.Equal(t, changelog.PlainText, changelog.ParseFormat("anything-else"))
}

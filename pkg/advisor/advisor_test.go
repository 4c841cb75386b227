// SPDX-License-Identifier: Apache-2.0

package advisor_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/advisor"
	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", advisor.Warning.String())
	assert.Equal(t, "suggestion", advisor.Suggestion.String())
	assert.Equal(t, "info", advisor.Info.String())
}

func TestGenerateFixSQLSkipsAdvisoriesWithoutFix(t *testing.T) {
	report := advisor.Report{
		Advisories: []advisor.Advisory{
			{RuleID: "A004", Severity: advisor.Warning, Explanation: "no primary key", FixSQL: ""},
			{RuleID: "A002", Severity: advisor.Suggestion, Explanation: "unused index", FixSQL: "DROP INDEX idx_foo;"},
		},
	}

	fixSQL := advisor.GenerateFixSQL(report)
	assert.Contains(t, fixSQL, "A002")
	assert.Contains(t, fixSQL, "DROP INDEX idx_foo;")
	assert.NotContains(t, fixSQL, "A004")
}

func TestGenerateFixSQLEmptyWhenNoFixes(t *testing.T) {
	report := advisor.Report{Advisories: []advisor.Advisory{{RuleID: "A004", FixSQL: ""}}}
	assert.Equal(t, "", advisor.GenerateFixSQL(report))
}

func TestAnalyzeAgainstLiveDatabase(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}

		_, err := rdb.ExecContext(ctx, `CREATE TABLE widgets_owners (id serial primary key)`)
		require.NoError(t, err)

		_, err = rdb.ExecContext(ctx, `CREATE TABLE widgets (
			id integer,
			owner_id integer REFERENCES widgets_owners(id),
			name varchar
		)`)
		require.NoError(t, err)

		report, err := advisor.Analyze(ctx, rdb, "public", advisor.Config{})
		require.NoError(t, err)
		assert.Equal(t, "public", report.Schema)

		var sawMissingFK, sawNoPK, sawVarchar bool
		for _, a := range report.Advisories {
			switch a.RuleID {
			case "A001":
				sawMissingFK = true
			case "A004":
				if a.Object == "widgets" {
					sawNoPK = true
				}
			case "A006":
				sawVarchar = true
			}
		}
		assert.True(t, sawMissingFK, "expected A001 (FK without index) for widgets.owner_id")
		assert.True(t, sawNoPK, "expected A004 (no primary key) for widgets")
		assert.True(t, sawVarchar, "expected A006 (varchar without limit) for widgets.name")
	})
}

func TestAnalyzeRespectsDisabledRules(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}

		_, err := rdb.ExecContext(ctx, `CREATE TABLE no_pk_table (id integer)`)
		require.NoError(t, err)

		report, err := advisor.Analyze(ctx, rdb, "public", advisor.Config{DisabledRules: []string{"A004"}})
		require.NoError(t, err)

		for _, a := range report.Advisories {
			assert.NotEqual(t, "A004", a.RuleID)
		}
	})
}

// SPDX-License-Identifier: Apache-2.0

package conflict_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/conflict"
)

func fakeReader(files map[string]string) conflict.FileReader {
	return func(path string) (string, error) {
		sql, ok := files[path]
		if !ok {
			return "", fmt.Errorf("no such file: %s", path)
		}
		return sql, nil
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "Version Collision", conflict.VersionCollision.String())
	assert.Equal(t, "Semantic Conflict", conflict.SemanticConflict.String())
}

func TestReportShapeWithoutConflicts(t *testing.T) {
	r := conflict.Report{BaseBranch: "main"}
	assert.False(t, r.HasConflict)
	assert.Empty(t, r.Conflicts)
}

// The git-shelling path (Check) needs a real repository and is left to
// integration coverage; CheckSemanticConflict is exercised directly here.
func TestCheckSemanticConflictDetectsOverlappingColumn(t *testing.T) {
	reader := fakeReader(map[string]string{
		"branch-a/V2__Add_email.sql":  "ALTER TABLE users ADD COLUMN email text;",
		"branch-b/V3__Drop_email.sql": "ALTER TABLE users DROP COLUMN email;",
	})

	c, ok := conflict.CheckSemanticConflict("branch-a/V2__Add_email.sql", "branch-b/V3__Drop_email.sql", reader)
	require.True(t, ok)
	assert.Equal(t, conflict.SemanticConflict, c.Type)
	assert.Contains(t, c.Description, "users.email")
}

func TestCheckSemanticConflictNoOverlap(t *testing.T) {
	reader := fakeReader(map[string]string{
		"branch-a/V2__Add_email.sql": "ALTER TABLE users ADD COLUMN email text;",
		"branch-b/V3__Add_phone.sql": "ALTER TABLE accounts ADD COLUMN phone text;",
	})

	_, ok := conflict.CheckSemanticConflict("branch-a/V2__Add_email.sql", "branch-b/V3__Add_phone.sql", reader)
	assert.False(t, ok)
}

func TestCheckSemanticConflictMissingFile(t *testing.T) {
	reader := fakeReader(map[string]string{})
	_, ok := conflict.CheckSemanticConflict("missing-a.sql", "missing-b.sql", reader)
	assert.False(t, ok)
}

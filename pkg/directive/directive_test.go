// SPDX-License-Identifier: Apache-2.0

package directive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waypointdb/waypoint/pkg/directive"
)

func TestParseLeadingComments(t *testing.T) {
	body := `-- waypoint:env prod
-- waypoint:depends 1,2
-- waypoint:require table_exists("accounts")
-- waypoint:safety-override

CREATE TABLE t (id int);
`
	ds := directive.Parse(body)
	assert.Len(t, ds, 4)
	assert.Equal(t, "env", ds[0].Name)
	assert.Equal(t, []string{"prod"}, ds[0].Args)
	assert.Equal(t, "depends", ds[1].Name)
	assert.Equal(t, []string{"1", "2"}, ds[1].Args)
	assert.Equal(t, `table_exists("accounts")`, ds[2].Rest)
	assert.Equal(t, "safety-override", ds[3].Name)
}

func TestParseStopsAtFirstNonComment(t *testing.T) {
	body := `CREATE TABLE t (id int);
-- waypoint:env prod
`
	ds := directive.Parse(body)
	assert.Empty(t, ds)
}

func TestParseIgnoresUnknownComments(t *testing.T) {
	body := `-- this is a regular comment
-- waypoint:env dev
CREATE TABLE t (id int);
`
	ds := directive.Parse(body)
	assert.Len(t, ds, 1)
	assert.Equal(t, "env", ds[0].Name)
}

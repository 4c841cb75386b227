// SPDX-License-Identifier: Apache-2.0

package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waypointdb/waypoint/pkg/checksum"
)

func TestOfIsStable(t *testing.T) {
	body := "CREATE TABLE t (id int);\n"
	c1 := checksum.Of(body)
	c2 := checksum.Of(body)
	assert.Equal(t, c1, c2)
}

func TestOfIgnoresLineEndingVariants(t *testing.T) {
	unix := "CREATE TABLE t (id int);\nALTER TABLE t ADD c text;\n"
	windows := "CREATE TABLE t (id int);\r\nALTER TABLE t ADD c text;\r\n"
	noTrailingNewline := "CREATE TABLE t (id int);\nALTER TABLE t ADD c text;"

	assert.Equal(t, checksum.Of(unix), checksum.Of(windows))
	assert.Equal(t, checksum.Of(unix), checksum.Of(noTrailingNewline))
}

func TestOfDetectsChange(t *testing.T) {
	a := checksum.Of("CREATE TABLE t (id int);\n")
	b := checksum.Of("CREATE TABLE t (id int, c text);\n")
	assert.NotEqual(t, a, b)
}

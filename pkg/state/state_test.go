// SPDX-License-Identifier: Apache-2.0

package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/state"
)

func TestNewRejectsInvalidIdentifiers(t *testing.T) {
	_, err := state.New(&db.FakeDB{}, "bad schema", "schema_history")
	require.Error(t, err)
	assert.ErrorAs(t, err, &state.InvalidIdentifierError{})

	_, err = state.New(&db.FakeDB{}, "public", "bad;table")
	require.Error(t, err)
	assert.ErrorAs(t, err, &state.InvalidIdentifierError{})
}

func TestNewQualifiesSchemaAndTable(t *testing.T) {
	s, err := state.New(&db.FakeDB{}, "public", "schema_history")
	require.NoError(t, err)
	assert.Equal(t, `"public"."schema_history"`, s.Qualified())
}

func TestInsertSQLReturnsInstalledRank(t *testing.T) {
	s, err := state.New(&db.FakeDB{}, "public", "schema_history")
	require.NoError(t, err)
	assert.Contains(t, s.InsertSQL(), "RETURNING installed_rank")
}

func TestEffectiveAppliedKeepsLatestSuccessfulRowPerKey(t *testing.T) {
	v1 := "1"
	entries := []state.Entry{
		{InstalledRank: 1, Version: &v1, Type: "VERSIONED", Success: true},
		{InstalledRank: 2, Version: &v1, Type: "VERSIONED", Success: false},
	}

	applied := state.EffectiveApplied(entries)
	assert.Empty(t, applied, "most recent row for the key failed, so the key is not effectively applied")
}

func TestEffectiveAppliedTreatsRepeatedRepairAsApplied(t *testing.T) {
	v1 := "1"
	entries := []state.Entry{
		{InstalledRank: 1, Version: &v1, Type: "VERSIONED", Success: false, InstalledOn: time.Now()},
		{InstalledRank: 2, Version: &v1, Type: "VERSIONED", Success: true, InstalledOn: time.Now()},
	}

	applied := state.EffectiveApplied(entries)
	require.Len(t, applied, 1)
	assert.True(t, applied["VERSIONED:1"].Success)
}

// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEvalBooleanCombinators(t *testing.T) {
	e, err := Parse(`true AND NOT false`)
	require.NoError(t, err)
	ok, err := Eval(context.Background(), e, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseAndEvalPrecedence(t *testing.T) {
	// AND binds tighter than OR: false OR (true AND true) => true
	e, err := Parse(`false OR true AND true`)
	require.NoError(t, err)
	ok, err := Eval(context.Background(), e, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseAndEvalComparison(t *testing.T) {
	e, err := Parse(`3 > 2 AND 1 <= 1`)
	require.NoError(t, err)
	ok, err := Eval(context.Background(), e, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseRejectsNonStringCallArgs(t *testing.T) {
	_, err := Parse(`table_exists(1)`)
	assert.Error(t, err)
}

func TestParseRejectsTooDeepNesting(t *testing.T) {
	expr := "true"
	for i := 0; i < MaxDepth+10; i++ {
		expr = "(" + expr + ")"
	}
	_, err := Parse(expr)
	assert.Error(t, err)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := Parse(`true true`)
	assert.Error(t, err)
}

func TestParseRejectsMissingParen(t *testing.T) {
	_, err := Parse(`(true AND false`)
	assert.Error(t, err)
}

// stubProbe is a minimal Probe used to test call dispatch without a live
// database: it returns a fixed boolean for every function call and records
// the last call it received.
type stubProbe struct {
	result   bool
	lastName string
	lastArgs []string
}

func (s *stubProbe) Call(ctx context.Context, name string, args []string) (value, error) {
	s.lastName = name
	s.lastArgs = args
	return value{kind: valBool, b: s.result}, nil
}

func TestEvalDispatchesCallsToProbe(t *testing.T) {
	e, err := Parse(`table_exists("accounts")`)
	require.NoError(t, err)

	p := &stubProbe{result: true}
	ok, err := Eval(context.Background(), e, p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "table_exists", p.lastName)
	assert.Equal(t, []string{"accounts"}, p.lastArgs)

	p = &stubProbe{result: false}
	ok, err = Eval(context.Background(), e, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalCombinesProbeResultsWithAnd(t *testing.T) {
	e, err := Parse(`table_exists("accounts") AND column_exists("accounts", "id")`)
	require.NoError(t, err)

	ok, err := Eval(context.Background(), e, &stubProbe{result: true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Eval(context.Background(), e, &stubProbe{result: false})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalRejectsMixedTypeComparison(t *testing.T) {
	e, err := Parse(`"abc" > 1`)
	require.NoError(t, err)
	_, err = Eval(context.Background(), e, nil)
	assert.Error(t, err)
}

func TestEvalRejectsNonBooleanTopLevel(t *testing.T) {
	e, err := Parse(`1`)
	require.NoError(t, err)
	_, err = Eval(context.Background(), e, nil)
	assert.Error(t, err)
}

func TestEvalShortCircuitsAndSkipsSecondProbeCallWhenFalse(t *testing.T) {
	e, err := Parse(`false AND table_exists("never_checked")`)
	require.NoError(t, err)

	p := &stubProbe{result: true}
	ok, err := Eval(context.Background(), e, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, p.lastName, "right-hand probe must not be invoked once AND short-circuits false")
}

func TestEvalShortCircuitsOrSkipsSecondProbeCallWhenTrue(t *testing.T) {
	e, err := Parse(`true OR table_exists("never_checked")`)
	require.NoError(t, err)

	p := &stubProbe{result: false}
	ok, err := Eval(context.Background(), e, p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, p.lastName, "OR probe must not be invoked once OR short-circuits true")
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_FullTrajectory(t *testing.T) {
	sql, args, err := NewFilter("run-1").Compile()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT seq, tick, time, particle, site_from, site_to, kind FROM events WHERE run_id = ? ORDER BY seq ASC",
		sql)
	assert.Equal(t, []any{"run-1"}, args)
}

func TestCompile_AllClauses(t *testing.T) {
	f := NewFilter("run-1")
	f.Particle = 3
	f.Kinds = []string{"move", "swap"}
	f.FromTick = 2
	f.ToTick = 8
	f.Limit = 10

	sql, args, err := f.Compile()
	require.NoError(t, err)

	assert.Contains(t, sql, "particle = ?")
	assert.Contains(t, sql, "kind IN (?, ?)")
	assert.Contains(t, sql, "tick >= ?")
	assert.Contains(t, sql, "tick <= ?")
	assert.Contains(t, sql, "ORDER BY seq ASC")
	assert.Contains(t, sql, "LIMIT ?")

	// Bind order follows clause order.
	assert.Equal(t, []any{"run-1", int64(3), "move", "swap", int64(2), int64(8), 10}, args)
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	f := NewFilter("run-1")
	f.Kinds = []string{"move"}
	f.Particle = 7

	sql, _, err := f.Compile()
	require.NoError(t, err)

	assert.NotContains(t, sql, "run-1")
	assert.NotContains(t, sql, "move")
	assert.NotContains(t, sql, "7")
}

func TestCompile_OrderByAlwaysPresent(t *testing.T) {
	filters := []Filter{
		NewFilter("r"),
		{Run: "r", Particle: 1, FromTick: -1, ToTick: -1},
		{Run: "r", Kinds: []string{"expire"}, FromTick: 0, ToTick: 5, Limit: 2},
	}

	for _, f := range filters {
		sql, _, err := f.Compile()
		require.NoError(t, err)
		assert.Contains(t, sql, "ORDER BY seq ASC")
	}
}

func TestCompile_TickZeroIsARealBound(t *testing.T) {
	// NewFilter leaves bounds open; an explicit zero pins tick 0.
	f := Filter{Run: "r", FromTick: 0, ToTick: 0}

	sql, args, err := f.Compile()
	require.NoError(t, err)

	assert.Contains(t, sql, "tick >= ?")
	assert.Contains(t, sql, "tick <= ?")
	assert.Equal(t, []any{"r", int64(0), int64(0)}, args)
}

func TestCompile_InvalidFilterFails(t *testing.T) {
	var f Filter // no run, and zero tick bounds are fine

	_, _, err := f.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrRunRequired)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	f := Filter{
		Run:      "",
		Particle: -1,
		Kinds:    []string{"bogus"},
		FromTick: 5,
		ToTick:   1,
		Limit:    -2,
	}

	errs := f.Validate()
	require.Len(t, errs, 5)

	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{
		ErrRunRequired,
		ErrNegativeParticle,
		ErrUnknownKind,
		ErrTickRange,
		ErrNegativeLimit,
	}, codes)
}

func TestValidate_AcceptsEveryEngineKind(t *testing.T) {
	f := NewFilter("r")
	f.Kinds = []string{"place", "move", "swap", "push", "bounce", "merge", "remove", "exit", "expire"}

	assert.Empty(t, f.Validate())
}

func TestValidationError_Rendering(t *testing.T) {
	err := ValidationError{Field: "kinds", Message: `unknown event kind "warp"`, Code: ErrUnknownKind}
	assert.Equal(t, `[E203] kinds: unknown event kind "warp"`, err.Error())
}

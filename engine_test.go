package hopper

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(length int, left, right Boundary, mode Mode, traits ...Trait) Config {
	return Config{
		Track:  TrackConfig{Length: length, Left: left, Right: right},
		Mode:   mode,
		Traits: traits,
		Logger: discardLogger(),
	}
}

func mustSim(t *testing.T, cfg Config, specs ...ParticleSpec) *Sim {
	t.Helper()
	s, err := New(cfg, specs...)
	require.NoError(t, err)
	return s
}

func runSteps(t *testing.T, s *Sim, n int) []Event {
	t.Helper()
	events, err := s.Run(context.Background(), n)
	require.NoError(t, err)
	return events
}

func positions(s *Sim) map[ID]int {
	out := make(map[ID]int)
	for _, pv := range s.Particles() {
		out[pv.ID] = pv.Pos
	}
	return out
}

func kindsOf(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// stepper moves by delta at every opportunity, waiting wait between
// asynchronous opportunities.
func stepper(name string, delta int, wait float64) Trait {
	return Trait{Name: name, Step: func(*StepContext) (Intent, error) {
		return MoveAfter(delta, wait), nil
	}}
}

// bystander claims nothing but carries a handler, so it stays an active
// (non-marker) particle.
func bystander(name string) Trait {
	return Trait{Name: name, Collide: func(*CollideContext) (Outcome, error) {
		return Outcome{}, nil
	}}
}

func TestNew_Validation(t *testing.T) {
	walk := stepper("walker", 1, 1)

	tests := []struct {
		name  string
		cfg   Config
		specs []ParticleSpec
		field string
	}{
		{
			name:  "zero track length",
			cfg:   testConfig(0, BoundaryClosed, BoundaryClosed, ModeSync, walk),
			field: "track.length",
		},
		{
			name: "duplicate trait names",
			cfg:  testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk, stepper("walker", -1, 1)),
			field: "traits[1]",
		},
		{
			name: "empty trait name",
			cfg:  testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("", 1, 1)),
			field: "traits[0]",
		},
		{
			name:  "unknown trait reference",
			cfg:   testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk),
			specs: []ParticleSpec{{Traits: []string{"runner"}, Site: 0}},
			field: "particles[0]",
		},
		{
			name:  "trait attached twice",
			cfg:   testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk),
			specs: []ParticleSpec{{Traits: []string{"walker", "walker"}, Site: 0}},
			field: "particles[0]",
		},
		{
			name:  "state for unattached trait",
			cfg:   testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk, bystander("rock")),
			specs: []ParticleSpec{{Traits: []string{"walker"}, Site: 0, State: map[string]Bag{"rock": {}}}},
			field: "particles[0]",
		},
		{
			name:  "site out of bounds",
			cfg:   testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk),
			specs: []ParticleSpec{{Traits: []string{"walker"}, Site: 4}},
			field: "particles[0]",
		},
		{
			name: "double occupancy",
			cfg:  testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, walk),
			specs: []ParticleSpec{
				{Traits: []string{"walker"}, Site: 2},
				{Traits: []string{"walker"}, Site: 2},
			},
			field: "particles[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.specs...)
			require.Error(t, err)

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestNew_DoubleOccupancyExposesOccupant(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	_, err := New(cfg,
		ParticleSpec{Traits: []string{"walker"}, Site: 2},
		ParticleSpec{Traits: []string{"walker"}, Site: 2},
	)
	require.Error(t, err)
	require.True(t, IsOccupied(err))

	var oe *OccupiedError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 2, oe.Site)
	assert.Equal(t, ID(1), oe.Occupant, "the first particle holds the site")
}

func TestNew_PlacementsLogged(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 1})

	traj := s.Trajectory()
	require.Len(t, traj, 1)
	assert.Equal(t, EventPlace, traj[0].Kind)
	assert.Equal(t, ID(1), traj[0].Particle)
	assert.Equal(t, Nowhere, traj[0].From)
	assert.Equal(t, 1, traj[0].To)
	assert.Equal(t, int64(0), traj[0].Tick)
	assert.Equal(t, int64(1), traj[0].Seq)
}

func TestNew_MarkersGetLowestIDs(t *testing.T) {
	cfg := testConfig(5, BoundaryMarked, BoundaryMarked, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 2})

	pos := positions(s)
	assert.Equal(t, 0, pos[1], "left marker takes ID 1")
	assert.Equal(t, 4, pos[2], "right marker takes ID 2")
	assert.Equal(t, 2, pos[3], "roster particles follow the markers")

	views := s.Particles()
	require.Len(t, views, 3)
	assert.Equal(t, []string{"edge"}, views[0].Traits)
	assert.Equal(t, []string{"edge"}, views[1].Traits)
}

func TestNew_MarkerTraitAddedImplicitly(t *testing.T) {
	// The catalog does not declare "edge"; a marked end adds it.
	cfg := testConfig(3, BoundaryClosed, BoundaryMarked, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg)

	views := s.Particles()
	require.Len(t, views, 1)
	assert.Equal(t, []string{DefaultMarkerTrait}, views[0].Traits)
	assert.Equal(t, 2, views[0].Pos)
}

func TestNew_CustomMarkerTraitName(t *testing.T) {
	cfg := testConfig(3, BoundaryMarked, BoundaryClosed, ModeSync)
	cfg.MarkerTrait = "wall"
	s := mustSim(t, cfg)

	views := s.Particles()
	require.Len(t, views, 1)
	assert.Equal(t, []string{"wall"}, views[0].Traits)
}

func TestNew_AsyncScheduleRuleErrorSurfaces(t *testing.T) {
	broken := Trait{Name: "broken", Step: func(*StepContext) (Intent, error) { panic("no plan") }}
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeAsync, broken)

	_, err := New(cfg, ParticleSpec{Traits: []string{"broken"}, Site: 0})
	require.Error(t, err)
	assert.True(t, IsRuleError(err))
}

func TestSim_StopConsumedAtBoundary(t *testing.T) {
	cfg := testConfig(10, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	s.Stop()
	runSteps(t, s, 5)
	assert.Equal(t, int64(0), s.Tick(), "stop honored before any step")

	// The request was consumed; a later Run proceeds.
	runSteps(t, s, 2)
	assert.Equal(t, int64(2), s.Tick())
}

func TestSim_ContextCancellation(t *testing.T) {
	cfg := testConfig(10, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), s.Tick())
}

func TestSim_RunUntilSyncTickLimit(t *testing.T) {
	cfg := testConfig(10, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	_, err := s.RunUntil(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Tick())
	assert.Equal(t, 3, positions(s)[1])
}

func TestSim_TrajectoryIsACopy(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	traj := s.Trajectory()
	require.Len(t, traj, 1)
	traj[0].Particle = 99

	assert.Equal(t, ID(1), s.Trajectory()[0].Particle)
}

func TestSim_OccupancyIsACopy(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	view := s.Occupancy()
	runSteps(t, s, 1)

	occ, ok := view.OccupantAt(0)
	require.True(t, ok, "the copy still sees the old occupancy")
	assert.Equal(t, ID(1), occ)
}

func TestSim_FinishedIsTerminal(t *testing.T) {
	leaver := Trait{Name: "leaver", Step: func(*StepContext) (Intent, error) { return Vanish(), nil }}
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, leaver)
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"leaver"}, Site: 1})

	runSteps(t, s, 5)
	assert.True(t, s.Finished())
	assert.Equal(t, int64(1), s.Tick(), "run ended after the removing tick")

	// Further stepping is a no-op.
	require.NoError(t, s.StepOnce(context.Background()))
	assert.Equal(t, int64(1), s.Tick())
}

func TestSim_ObserverSeesEveryCommit(t *testing.T) {
	var views []StepView
	cfg := testConfig(10, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	cfg.Observer = func(v StepView) { views = append(views, v) }
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	runSteps(t, s, 3)

	require.Len(t, views, 3)
	for i, v := range views {
		assert.Equal(t, int64(i+1), v.Tick)
		require.Len(t, v.Events, 1)
		assert.Equal(t, EventMove, v.Events[0].Kind)
		occ, ok := v.Track.OccupantAt(i + 1)
		require.True(t, ok)
		assert.Equal(t, ID(1), occ)
		require.Len(t, v.Particles, 1)
		assert.Equal(t, i+1, v.Particles[0].Pos)
	}
}

func TestVerify_DetectsDesync(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})

	// Corrupt the occupancy behind the engine's back.
	s.track.sites[0] = 0
	s.track.sites[3] = 1

	err := s.verify()
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
}

func TestSim_ModeAccessor(t *testing.T) {
	cfg := testConfig(4, BoundaryClosed, BoundaryClosed, ModeSync, stepper("walker", 1, 1))
	s := mustSim(t, cfg, ParticleSpec{Traits: []string{"walker"}, Site: 0})
	assert.Equal(t, ModeSync, s.Mode())
}

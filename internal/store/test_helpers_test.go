package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/scenario"
)

// createTestStore creates a store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSpec returns a minimal compiled scenario.
func createTestSpec(name string) *scenario.Spec {
	return &scenario.Spec{
		Name:  name,
		Track: scenario.Track{Length: 5},
		Mode:  "sync",
		Seed:  1,
		Limit: 4,
		Particles: []scenario.Particle{
			{
				Traits: []string{"walker"},
				Site:   0,
				State:  map[string]map[string]any{"walker": {"dir": int64(-1), "speed": 0.5}},
			},
		},
	}
}

// createTestRun builds and begins a run for a minimal scenario.
func createTestRun(t *testing.T, s *Store, id, name string) Run {
	t.Helper()
	run, err := NewRun(id, createTestSpec(name))
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	if err := s.BeginRun(context.Background(), run); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return run
}

// ev builds a trajectory event.
func ev(seq, tick int64, time float64, particle hopper.ID, from, to int, kind hopper.EventKind) hopper.Event {
	return hopper.Event{
		Seq:      seq,
		Tick:     tick,
		Time:     time,
		Particle: particle,
		From:     from,
		To:       to,
		Kind:     kind,
	}
}

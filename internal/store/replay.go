package store

import (
	"context"
	"fmt"

	"github.com/roach88/hopper"
)

// Divergence is one field-level difference between a stored trajectory
// and a replayed one.
type Divergence struct {
	Seq      int64
	Field    string
	Stored   string
	Replayed string
}

func (d Divergence) String() string {
	return fmt.Sprintf("seq %d: %s: stored %s, replayed %s", d.Seq, d.Field, d.Stored, d.Replayed)
}

// Report summarizes a replay comparison. An empty Divergences slice
// means the replay reproduced the stored trajectory exactly.
type Report struct {
	RunID       string
	Stored      int
	Replayed    int
	Divergences []Divergence
}

// Deterministic reports whether the replay matched event for event.
func (r Report) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Verify compares a run's stored trajectory against a freshly replayed
// one, field by field in seq order. Every differing field is reported,
// not just the first, so a systematic drift (say, all times shifted)
// reads as such.
func (s *Store) Verify(ctx context.Context, runID string, replayed []hopper.Event) (Report, error) {
	stored, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return Report{}, fmt.Errorf("verify run: %w", err)
	}

	report := Report{
		RunID:    runID,
		Stored:   len(stored),
		Replayed: len(replayed),
	}

	n := len(stored)
	if len(replayed) < n {
		n = len(replayed)
	}

	for i := 0; i < n; i++ {
		report.Divergences = append(report.Divergences, diffEvents(stored[i], replayed[i])...)
	}

	if len(stored) != len(replayed) {
		report.Divergences = append(report.Divergences, Divergence{
			Seq:      int64(n),
			Field:    "length",
			Stored:   fmt.Sprintf("%d events", len(stored)),
			Replayed: fmt.Sprintf("%d events", len(replayed)),
		})
	}

	return report, nil
}

func diffEvents(stored, replayed hopper.Event) []Divergence {
	var diffs []Divergence

	diff := func(field string, a, b any) {
		if a != b {
			diffs = append(diffs, Divergence{
				Seq:      stored.Seq,
				Field:    field,
				Stored:   fmt.Sprintf("%v", a),
				Replayed: fmt.Sprintf("%v", b),
			})
		}
	}

	diff("seq", stored.Seq, replayed.Seq)
	diff("tick", stored.Tick, replayed.Tick)
	diff("time", stored.Time, replayed.Time)
	diff("particle", stored.Particle, replayed.Particle)
	diff("from", stored.From, replayed.From)
	diff("to", stored.To, replayed.To)
	diff("kind", stored.Kind, replayed.Kind)

	return diffs
}

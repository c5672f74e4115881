package store

import (
	"context"
	"testing"

	"github.com/roach88/hopper"
)

func storedTrajectory() []hopper.Event {
	return []hopper.Event{
		ev(1, 0, 0, 1, hopper.Nowhere, 0, hopper.EventPlace),
		ev(2, 1, 1, 1, 0, 1, hopper.EventMove),
		ev(3, 2, 2, 1, 1, 2, hopper.EventMove),
	}
}

func TestVerify_Deterministic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1", "drift")
	if err := s.AppendEvents(ctx, "run-1", storedTrajectory()); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	report, err := s.Verify(ctx, "run-1", storedTrajectory())
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	if !report.Deterministic() {
		t.Errorf("replay diverged: %v", report.Divergences)
	}
	if report.Stored != 3 || report.Replayed != 3 {
		t.Errorf("counts = %d stored, %d replayed, want 3, 3", report.Stored, report.Replayed)
	}
}

func TestVerify_ReportsFieldDivergences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1", "drift")
	if err := s.AppendEvents(ctx, "run-1", storedTrajectory()); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	replayed := storedTrajectory()
	replayed[1].To = 3
	replayed[1].Kind = hopper.EventPush

	report, err := s.Verify(ctx, "run-1", replayed)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	if report.Deterministic() {
		t.Fatal("tampered replay reported deterministic")
	}
	if len(report.Divergences) != 2 {
		t.Fatalf("got %d divergences, want 2: %v", len(report.Divergences), report.Divergences)
	}

	fields := []string{report.Divergences[0].Field, report.Divergences[1].Field}
	if fields[0] != "to" || fields[1] != "kind" {
		t.Errorf("divergent fields = %v, want [to kind]", fields)
	}
	for _, d := range report.Divergences {
		if d.Seq != 2 {
			t.Errorf("divergence seq = %d, want 2", d.Seq)
		}
	}
}

func TestVerify_LengthMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1", "drift")
	if err := s.AppendEvents(ctx, "run-1", storedTrajectory()); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	report, err := s.Verify(ctx, "run-1", storedTrajectory()[:2])
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	if report.Deterministic() {
		t.Fatal("truncated replay reported deterministic")
	}
	last := report.Divergences[len(report.Divergences)-1]
	if last.Field != "length" {
		t.Errorf("last divergence field = %q, want %q", last.Field, "length")
	}
	if report.Stored != 3 || report.Replayed != 2 {
		t.Errorf("counts = %d stored, %d replayed, want 3, 2", report.Stored, report.Replayed)
	}
}

func TestDivergence_String(t *testing.T) {
	d := Divergence{Seq: 7, Field: "to", Stored: "3", Replayed: "4"}
	want := "seq 7: to: stored 3, replayed 4"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

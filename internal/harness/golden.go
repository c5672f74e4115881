package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/canon"
)

// TrajectorySnapshot captures a run's identity and full event log in the
// canonical encoding used for golden comparison.
type TrajectorySnapshot struct {
	Name   string         `json:"name"`
	Mode   string         `json:"mode"`
	Seed   int64          `json:"seed"`
	Events []hopper.Event `json:"events"`
}

// encode produces the canonical JSON bytes of the snapshot.
func (s TrajectorySnapshot) encode() ([]byte, error) {
	if s.Events == nil {
		s.Events = []hopper.Event{}
	}
	return canon.Marshal(s)
}

// RunWithGolden executes a case and compares its canonical trajectory
// encoding against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are the source of truth for expected trajectories; any
// engine change that moves one is a behavior change and should be
// reviewed as such.
func RunWithGolden(t *testing.T, scn *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scn)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scn.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the golden
// file named after the case.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TrajectorySnapshot{
		Name:   name,
		Mode:   result.Mode,
		Seed:   result.Seed,
		Events: result.Trajectory,
	}
	data, err := snapshot.encode()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

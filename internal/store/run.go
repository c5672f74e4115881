package store

import (
	"fmt"

	"github.com/roach88/hopper/internal/scenario"
)

// Run statuses. A run is recorded before its first event and finalized
// once the engine stops. A stopped run holds a prefix of its full
// trajectory, so it is excluded from determinism replays.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusStopped  = "stopped"
	StatusFailed   = "failed"
)

// Run is one simulation run's record: scenario identity, the compiled
// spec it executed, and its terminal state.
type Run struct {
	ID          string
	Name        string
	Fingerprint string
	Mode        string
	Seed        int64
	Spec        *scenario.Spec
	Status      string
	FinalTick   int64
	FinalTime   float64
}

// NewRun builds a Run record for a compiled scenario, deriving the
// denormalized identity columns from the spec.
func NewRun(id string, spec *scenario.Spec) (Run, error) {
	fp, err := spec.Fingerprint()
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	return Run{
		ID:          id,
		Name:        spec.Name,
		Fingerprint: fp,
		Mode:        spec.EffectiveMode(),
		Seed:        spec.Seed,
		Spec:        spec,
		Status:      StatusRunning,
	}, nil
}

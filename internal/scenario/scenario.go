// Package scenario defines the compiled scenario form: the declarative
// description of one simulation run (track shape, driving mode, seed,
// roster and limit), decoupled from the CUE surface syntax that produces
// it and from the engine that executes it.
package scenario

import (
	"fmt"

	"github.com/roach88/hopper/internal/canon"
)

// Domain prefix for scenario fingerprints. The version suffix leaves room
// for algorithm migration.
const fingerprintDomain = "hopper/scenario/v1"

// Spec is one compiled scenario.
type Spec struct {
	// Name identifies the scenario. Used for golden file naming and run
	// records.
	Name string `json:"name"`

	// Description says what the scenario demonstrates. Optional.
	Description string `json:"description,omitempty"`

	// Track is the track shape.
	Track Track `json:"track"`

	// Mode is the driving policy: "sync" or "async".
	Mode string `json:"mode"`

	// Seed positions the random stream.
	Seed int64 `json:"seed"`

	// Limit bounds the run: the tick count in synchronous mode, the time
	// horizon in asynchronous mode.
	Limit float64 `json:"limit"`

	// Marker optionally overrides the trait attached to boundary markers.
	Marker string `json:"marker,omitempty"`

	// Particles is the initial roster.
	Particles []Particle `json:"particles"`
}

// Track is the track shape as declared by a scenario.
type Track struct {
	Length int    `json:"length"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

// Particle is one roster entry: trait names in attachment order, the
// starting site, and per-trait state overrides.
type Particle struct {
	Traits []string                  `json:"traits"`
	Site   int                       `json:"site"`
	State  map[string]map[string]any `json:"state,omitempty"`
}

// Fingerprint returns the canonical content hash of the spec. Two specs
// with equal fingerprints describe the same run; the run store records it
// so replays can refuse a drifted scenario.
func (s *Spec) Fingerprint() (string, error) {
	h, err := canon.Hash(fingerprintDomain, s)
	if err != nil {
		return "", fmt.Errorf("fingerprint scenario %q: %w", s.Name, err)
	}
	return h, nil
}

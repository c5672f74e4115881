package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/hopper/internal/canon"
	"github.com/roach88/hopper/internal/scenario"
)

// marshalSpec converts a compiled scenario to canonical JSON TEXT for
// storage. Canonical form keeps the stored bytes stable across replays,
// so the runs table itself can be diffed.
func marshalSpec(spec *scenario.Spec) (string, error) {
	data, err := canon.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	return string(data), nil
}

// unmarshalSpec parses stored canonical JSON back into a scenario.
// Numeric state values widen to float64 on the way through JSON; the
// engine's bag accessors absorb that.
func unmarshalSpec(data string) (*scenario.Spec, error) {
	var spec scenario.Spec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	return &spec, nil
}

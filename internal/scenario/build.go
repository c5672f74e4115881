package scenario

import (
	"slices"

	"github.com/roach88/hopper"
)

// Build turns a compiled spec into engine inputs: a run Config bound to
// the given trait catalog, and the initial roster. The catalog decides
// which trait names resolve; a roster entry referencing a name outside it
// surfaces from hopper.New as a ConfigurationError.
//
// The returned Config carries no logger; callers set one before handing
// it to the engine.
func Build(s *Spec, catalog []hopper.Trait) (hopper.Config, []hopper.ParticleSpec, error) {
	left, err := hopper.ParseBoundary(EffectiveBoundary(s.Track.Left))
	if err != nil {
		return hopper.Config{}, nil, err
	}
	right, err := hopper.ParseBoundary(EffectiveBoundary(s.Track.Right))
	if err != nil {
		return hopper.Config{}, nil, err
	}
	mode, err := hopper.ParseMode(s.EffectiveMode())
	if err != nil {
		return hopper.Config{}, nil, err
	}

	cfg := hopper.Config{
		Track: hopper.TrackConfig{
			Length: s.Track.Length,
			Left:   left,
			Right:  right,
		},
		Mode:        mode,
		Seed:        s.Seed,
		Traits:      catalog,
		MarkerTrait: s.Marker,
	}

	roster := make([]hopper.ParticleSpec, 0, len(s.Particles))
	for _, p := range s.Particles {
		spec := hopper.ParticleSpec{
			Traits: slices.Clone(p.Traits),
			Site:   p.Site,
		}
		if len(p.State) > 0 {
			spec.State = make(map[string]hopper.Bag, len(p.State))
			for trait, bag := range p.State {
				spec.State[trait] = hopper.Bag(bag)
			}
		}
		roster = append(roster, spec)
	}
	return cfg, roster, nil
}

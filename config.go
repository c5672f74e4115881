package hopper

import (
	"fmt"
	"log/slog"
)

// Mode selects the driving policy. Exactly one policy drives a run; the
// two are never mixed.
type Mode uint8

const (
	// ModeSync advances the simulation in global ticks: every eligible
	// particle is evaluated against the pre-tick snapshot and all approved
	// changes commit atomically at the tick boundary.
	ModeSync Mode = iota

	// ModeAsync advances the simulation event by event: a priority queue
	// keyed by next-event time pops the earliest particle, which is
	// evaluated against the live track and committed immediately.
	ModeAsync
)

// String returns the mode's configuration name.
func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts a configuration name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	default:
		return ModeSync, fmt.Errorf("unknown mode %q (want sync or async)", s)
	}
}

// DefaultMarkerTrait is the trait attached to the particles a marked
// boundary places on its end site.
const DefaultMarkerTrait = "edge"

// Config is the explicit, run-scoped configuration object: track shape,
// driving policy, seed, the trait catalog and the global collision
// fallback. Nothing here is process-global; independent runs built from
// independent Configs share no state.
type Config struct {
	// Track is the track shape.
	Track TrackConfig

	// Mode is the driving policy. Defaults to ModeSync.
	Mode Mode

	// Seed positions the run's random stream.
	Seed int64

	// Traits is the catalog: every trait particles may attach. Names must
	// be unique and non-empty.
	Traits []Trait

	// Fallback is the global collision rule consulted when no trait on
	// either party claims a collision. Optional; without it an unclaimed
	// collision blocks the move.
	Fallback CollideRule

	// MarkerTrait names the catalog trait attached to boundary markers on
	// marked ends. Defaults to DefaultMarkerTrait; if the catalog lacks
	// it, an identifying-only trait of that name is added implicitly.
	MarkerTrait string

	// Observer, if set, is invoked once per committed step with a
	// read-only snapshot. It must not block for long and must not panic.
	Observer Observer

	// Logger receives structured engine logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// ParticleSpec declares one particle: its traits in attachment order, its
// initial site, and initial trait-private state overriding the traits'
// defaults. Used both for setup rosters and for spawn requests from rules.
type ParticleSpec struct {
	// Traits lists attached trait names. Order is attachment order, the
	// dispatch precedence within this particle.
	Traits []string `json:"traits"`

	// Site is the initial site.
	Site int `json:"site"`

	// State holds per-trait initial private state, keyed by trait name.
	State map[string]Bag `json:"state,omitempty"`
}

// catalog resolves the Config's trait list into a lookup table, validating
// uniqueness. The marker trait is added implicitly when a marked boundary
// needs it.
func (c *Config) catalog() (map[string]Trait, error) {
	byName := make(map[string]Trait, len(c.Traits)+1)
	for i := range c.Traits {
		tr := c.Traits[i]
		if tr.Name == "" {
			return nil, newConfigError(fmt.Sprintf("traits[%d]", i), "trait name must not be empty")
		}
		if _, dup := byName[tr.Name]; dup {
			return nil, newConfigError(fmt.Sprintf("traits[%d]", i), "duplicate trait name %q", tr.Name)
		}
		tr.Defaults = tr.Defaults.clone()
		byName[tr.Name] = tr
	}
	if c.Track.Left == BoundaryMarked || c.Track.Right == BoundaryMarked {
		name := c.markerTrait()
		if _, ok := byName[name]; !ok {
			byName[name] = Trait{Name: name}
		}
	}
	return byName, nil
}

// markerTrait returns the effective marker trait name.
func (c *Config) markerTrait() string {
	if c.MarkerTrait != "" {
		return c.MarkerTrait
	}
	return DefaultMarkerTrait
}

// logger returns the effective logger.
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// validate checks everything checkable before any step executes.
func (c *Config) validate() error {
	if c.Mode != ModeSync && c.Mode != ModeAsync {
		return newConfigError("mode", "unknown mode %d", c.Mode)
	}
	if _, err := NewTrack(c.Track); err != nil {
		return err
	}
	_, err := c.catalog()
	return err
}

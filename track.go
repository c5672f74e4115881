package hopper

import "fmt"

// Boundary selects how a track end treats displacement past it.
type Boundary uint8

const (
	// BoundaryClosed rejects any intent targeting a site past the end.
	// The move is blocked; nothing is logged because nothing changed.
	BoundaryClosed Boundary = iota

	// BoundaryOpen lets a displacement past the end carry the particle off
	// the track. The particle is removed and the exit is logged.
	BoundaryOpen

	// BoundaryMarked places a marker particle on the end site at
	// construction. Moves toward the end meet the marker and go through
	// ordinary collision dispatch; a target genuinely outside the track on
	// a marked end is a fatal BoundaryError.
	BoundaryMarked
)

// String returns the boundary's configuration name.
func (b Boundary) String() string {
	switch b {
	case BoundaryClosed:
		return "closed"
	case BoundaryOpen:
		return "open"
	case BoundaryMarked:
		return "marked"
	default:
		return fmt.Sprintf("boundary(%d)", uint8(b))
	}
}

// ParseBoundary converts a configuration name into a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "closed":
		return BoundaryClosed, nil
	case "open":
		return BoundaryOpen, nil
	case "marked":
		return BoundaryMarked, nil
	default:
		return BoundaryClosed, fmt.Errorf("unknown boundary %q (want closed, open or marked)", s)
	}
}

// TrackConfig describes the shape of a track: its length and how each end
// behaves.
type TrackConfig struct {
	// Length is the number of sites. Must be at least 1.
	Length int

	// Left configures the end below site 0.
	Left Boundary

	// Right configures the end above site Length-1.
	Right Boundary
}

// Track is an ordered sequence of discrete sites, each empty or holding
// exactly one particle identity.
//
// Track holds only non-owning references (site → particle ID); particles
// themselves live in the engine's registry. All mutation goes through the
// engine's commit phase: the mutators are unexported, so code outside this
// package sees a read-only view and rules cannot write occupancy directly.
type Track struct {
	sites []ID // 0 means empty
	left  Boundary
	right Boundary
}

// NewTrack builds an empty track from cfg.
func NewTrack(cfg TrackConfig) (*Track, error) {
	if cfg.Length < 1 {
		return nil, newConfigError("track.length", "must be at least 1, got %d", cfg.Length)
	}
	if cfg.Left > BoundaryMarked {
		return nil, newConfigError("track.left", "unknown boundary kind %d", cfg.Left)
	}
	if cfg.Right > BoundaryMarked {
		return nil, newConfigError("track.right", "unknown boundary kind %d", cfg.Right)
	}
	return &Track{
		sites: make([]ID, cfg.Length),
		left:  cfg.Left,
		right: cfg.Right,
	}, nil
}

// Len returns the number of sites.
func (t *Track) Len() int {
	return len(t.sites)
}

// Bounds returns the left and right boundary kinds.
func (t *Track) Bounds() (left, right Boundary) {
	return t.left, t.right
}

// InBounds reports whether site is a valid site index.
func (t *Track) InBounds(site int) bool {
	return site >= 0 && site < len(t.sites)
}

// OccupantAt returns the particle holding site, if any. Out-of-bounds
// sites report empty.
func (t *Track) OccupantAt(site int) (ID, bool) {
	if !t.InBounds(site) {
		return 0, false
	}
	id := t.sites[site]
	return id, id != 0
}

// Neighbors returns the adjacent in-bounds sites of site, ascending.
// Boundary kind does not matter here: a site past a closed or open end is
// not a site at all.
func (t *Track) Neighbors(site int) []int {
	out := make([]int, 0, 2)
	if t.InBounds(site - 1) {
		out = append(out, site-1)
	}
	if t.InBounds(site + 1) {
		out = append(out, site+1)
	}
	return out
}

// place records p as the occupant of site. The site must be in bounds.
// Commit-phase only.
func (t *Track) place(p ID, site int) error {
	if cur := t.sites[site]; cur != 0 {
		return &OccupiedError{Site: site, Occupant: cur}
	}
	t.sites[site] = p
	return nil
}

// vacate clears site and returns the particle that held it, 0 if none.
// The site must be in bounds. Commit-phase only.
func (t *Track) vacate(site int) ID {
	id := t.sites[site]
	t.sites[site] = 0
	return id
}

// snapshot returns a copy of the occupancy slice. Used for the pre-tick
// view in synchronous mode and for observer views.
func (t *Track) snapshot() *Track {
	sites := make([]ID, len(t.sites))
	copy(sites, t.sites)
	return &Track{sites: sites, left: t.left, right: t.right}
}

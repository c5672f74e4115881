package scenario

import (
	"fmt"
	"strings"
)

// Validation error codes.
const (
	ErrNameRequired    = "E101" // name is required
	ErrTrackLength     = "E102" // track length must be positive
	ErrUnknownBoundary = "E103" // unknown boundary kind
	ErrUnknownMode     = "E104" // unknown mode
	ErrLimitRequired   = "E105" // limit must be positive
	ErrSiteOutOfRange  = "E106" // particle site outside the track
	ErrNoTraits        = "E107" // particle has no traits
	ErrDuplicateTrait  = "E108" // trait attached twice
	ErrStateUnattached = "E109" // state for a trait not attached
	ErrSiteContested   = "E110" // two roster entries on one site
	ErrMarkerSiteTaken = "E111" // roster entry on a marked end site
)

// validBoundaries are the boundary kinds a scenario may declare. An empty
// string means closed.
var validBoundaries = map[string]bool{
	"":       true,
	"closed": true,
	"open":   true,
	"marked": true,
}

// validModes are the driving policies a scenario may declare. An empty
// string means sync.
var validModes = map[string]bool{
	"":      true,
	"sync":  true,
	"async": true,
}

// ValidationError is one schema violation found in a spec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a spec against the schema rules and returns every
// violation found; it does not fail fast. An empty result means the spec
// is well-formed (trait names still resolve later, against whatever
// catalog the runner binds).
func (s *Spec) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(s.Name) == "" {
		add("name", ErrNameRequired, "name is required")
	}
	if s.Track.Length <= 0 {
		add("track.length", ErrTrackLength, "track length must be positive, got %d", s.Track.Length)
	}
	if !validBoundaries[s.Track.Left] {
		add("track.left", ErrUnknownBoundary, "unknown boundary %q (want closed, open or marked)", s.Track.Left)
	}
	if !validBoundaries[s.Track.Right] {
		add("track.right", ErrUnknownBoundary, "unknown boundary %q (want closed, open or marked)", s.Track.Right)
	}
	if !validModes[s.Mode] {
		add("mode", ErrUnknownMode, "unknown mode %q (want sync or async)", s.Mode)
	}
	if s.Limit <= 0 {
		add("limit", ErrLimitRequired, "limit must be positive, got %v", s.Limit)
	}

	// Marked ends hold their marker particles; the roster cannot start
	// there.
	reserved := map[int]string{}
	if s.Track.Left == "marked" {
		reserved[0] = "track.left"
	}
	if s.Track.Right == "marked" && s.Track.Length > 0 {
		reserved[s.Track.Length-1] = "track.right"
	}

	taken := map[int]int{} // site → roster index
	for i, p := range s.Particles {
		field := fmt.Sprintf("particles[%d]", i)

		if len(p.Traits) == 0 {
			add(field+".traits", ErrNoTraits, "at least one trait is required")
		}
		seen := map[string]bool{}
		for _, name := range p.Traits {
			if seen[name] {
				add(field+".traits", ErrDuplicateTrait, "trait %q attached twice", name)
			}
			seen[name] = true
		}
		for name := range p.State {
			if !seen[name] {
				add(field+".state", ErrStateUnattached, "state for trait %q, which is not attached", name)
			}
		}

		if s.Track.Length > 0 && (p.Site < 0 || p.Site >= s.Track.Length) {
			add(field+".site", ErrSiteOutOfRange, "site %d outside [0,%d)", p.Site, s.Track.Length)
			continue
		}
		if end, ok := reserved[p.Site]; ok {
			add(field+".site", ErrMarkerSiteTaken, "site %d holds the %s marker", p.Site, end)
		}
		if prev, ok := taken[p.Site]; ok {
			add(field+".site", ErrSiteContested, "site %d already taken by particles[%d]", p.Site, prev)
		} else {
			taken[p.Site] = i
		}
	}

	return errs
}

// EffectiveMode returns the declared mode with the empty-string default
// applied.
func (s *Spec) EffectiveMode() string {
	if s.Mode == "" {
		return "sync"
	}
	return s.Mode
}

// EffectiveBoundary returns a declared boundary with the empty-string
// default applied.
func EffectiveBoundary(b string) string {
	if b == "" {
		return "closed"
	}
	return b
}

// Package query compiles trace filters into parameterized SQL over the
// stored event log.
//
// A Filter narrows one run's trajectory by particle, event kind and tick
// range. Compilation always produces ORDER BY seq ASC so filtered reads
// come back in commit order, and every value travels as a bind parameter,
// never interpolated into the SQL text.
package query

import (
	"fmt"

	"github.com/roach88/hopper"
)

// Validation error codes.
const (
	ErrRunRequired      = "E201" // run ID is required
	ErrNegativeParticle = "E202" // particle ID must be positive
	ErrUnknownKind      = "E203" // unknown event kind
	ErrTickRange        = "E204" // tick range is inverted
	ErrNegativeLimit    = "E205" // limit must not be negative
)

// validKinds are the event kinds the engine commits.
var validKinds = map[string]bool{
	string(hopper.EventPlace):  true,
	string(hopper.EventMove):   true,
	string(hopper.EventSwap):   true,
	string(hopper.EventPush):   true,
	string(hopper.EventBounce): true,
	string(hopper.EventMerge):  true,
	string(hopper.EventRemove): true,
	string(hopper.EventExit):   true,
	string(hopper.EventExpire): true,
}

// ValidationError is one problem found in a filter.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Filter selects a subset of one run's trajectory.
//
// The zero value is not useful: tick bounds apply when non-negative, so
// build filters with NewFilter, which leaves both bounds open.
type Filter struct {
	// Run is the run whose trajectory is filtered. Required.
	Run string

	// Particle restricts to one particle's events when positive. Zero
	// selects all particles (IDs start at 1).
	Particle int64

	// Kinds restricts to the named event kinds. Empty selects all.
	Kinds []string

	// FromTick is the inclusive tick lower bound when >= 0.
	FromTick int64

	// ToTick is the inclusive tick upper bound when >= 0.
	ToTick int64

	// Limit caps the number of rows returned when positive.
	Limit int
}

// NewFilter returns a filter over the whole trajectory of one run, with
// open tick bounds.
func NewFilter(run string) Filter {
	return Filter{Run: run, FromTick: -1, ToTick: -1}
}

// Validate checks the filter and returns every problem found; it does
// not fail fast.
func (f Filter) Validate() []ValidationError {
	var errs []ValidationError

	if f.Run == "" {
		errs = append(errs, ValidationError{
			Field:   "run",
			Message: "run ID is required",
			Code:    ErrRunRequired,
		})
	}

	if f.Particle < 0 {
		errs = append(errs, ValidationError{
			Field:   "particle",
			Message: fmt.Sprintf("particle ID must be positive, got %d", f.Particle),
			Code:    ErrNegativeParticle,
		})
	}

	for _, kind := range f.Kinds {
		if !validKinds[kind] {
			errs = append(errs, ValidationError{
				Field:   "kinds",
				Message: fmt.Sprintf("unknown event kind %q", kind),
				Code:    ErrUnknownKind,
			})
		}
	}

	if f.FromTick >= 0 && f.ToTick >= 0 && f.FromTick > f.ToTick {
		errs = append(errs, ValidationError{
			Field:   "ticks",
			Message: fmt.Sprintf("tick range is inverted: %d > %d", f.FromTick, f.ToTick),
			Code:    ErrTickRange,
		})
	}

	if f.Limit < 0 {
		errs = append(errs, ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("limit must not be negative, got %d", f.Limit),
			Code:    ErrNegativeLimit,
		})
	}

	return errs
}

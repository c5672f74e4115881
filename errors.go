package hopper

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a problem detected while validating a Config or
// particle roster, before any step executes.
//
// Configuration errors include:
//   - Track shape: non-positive length, unknown boundary kind
//   - Catalog: duplicate or empty trait names
//   - Roster: unknown trait reference, out-of-bounds site, double occupancy
//   - Restore: checkpoint fingerprint or digest mismatch
//
// Field names the offending config element where one can be identified.
type ConfigurationError struct {
	// Field identifies the config element ("track.length", "particles[2]").
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("CONFIG: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("CONFIG: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// OccupiedError reports a placement onto a site that already holds a
// particle. Surfaced from setup (wrapped in a ConfigurationError) and from
// spawn commits (wrapped in a RuleError).
type OccupiedError struct {
	// Site is the contested site index.
	Site int

	// Occupant is the particle already holding the site.
	Occupant ID
}

// Error implements the error interface.
func (e *OccupiedError) Error() string {
	return fmt.Sprintf("OCCUPIED: site %d held by particle %d", e.Site, e.Occupant)
}

// RuleError reports a user-supplied rule breaking its contract: returning a
// value outside the allowed shape, spawning onto an occupied site, or
// panicking. The rule's own error, if any, is wrapped and reachable through
// errors.Is/errors.As so callers see it verbatim.
//
// A RuleError halts the run. The trajectory up to the failing step remains
// available from Trajectory().
type RuleError struct {
	// Particle is the particle whose rule failed.
	Particle ID

	// Trait names the trait that supplied the handler; empty for the
	// global collision fallback.
	Trait string

	// Op is the handler kind: "step", "collide", "expire" or "spawn".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the error (or recovered panic) produced by the rule.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.Trait != "" {
		return fmt.Sprintf("RULE: %s handler of trait %q on particle %d: %s", e.Op, e.Trait, e.Particle, e.Message)
	}
	return fmt.Sprintf("RULE: %s handler on particle %d: %s", e.Op, e.Particle, e.Message)
}

// Unwrap returns the rule's own error.
func (e *RuleError) Unwrap() error { return e.Err }

// BoundaryError reports a committed-phase move that targets a site outside
// the track with nothing in place to intercept it. Fatal and never retried:
// the rule is malformed relative to the current track.
type BoundaryError struct {
	// Particle is the mover.
	Particle ID

	// From is the mover's position when the move was requested.
	From int

	// Target is the out-of-bounds site.
	Target int
}

// Error implements the error interface.
func (e *BoundaryError) Error() string {
	return fmt.Sprintf("BOUNDARY: particle %d at site %d targeted out-of-bounds site %d", e.Particle, e.From, e.Target)
}

// InvariantViolation reports a desynchronization between track occupancy and
// particle positions detected after a commit. Always fatal: it signals an
// engine defect, not a data problem, and is never suppressed or retried.
type InvariantViolation struct {
	// Message describes the mismatch.
	Message string

	// Particle is the particle involved, if one could be identified.
	Particle ID

	// Site is the site involved, if one could be identified.
	Site int
}

// Error implements the error interface.
func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("INVARIANT: %s (particle=%d, site=%d)", e.Message, e.Particle, e.Site)
}

// IsConfigurationError reports whether err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsRuleError reports whether err is a RuleError.
// Uses errors.As to handle wrapped errors.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsBoundaryError reports whether err is a BoundaryError.
// Uses errors.As to handle wrapped errors.
func IsBoundaryError(err error) bool {
	var be *BoundaryError
	return errors.As(err, &be)
}

// IsInvariantViolation reports whether err is an InvariantViolation.
// Uses errors.As to handle wrapped errors.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// IsOccupied reports whether err is (or wraps) an OccupiedError.
// Uses errors.As to handle wrapped errors.
func IsOccupied(err error) bool {
	var oe *OccupiedError
	return errors.As(err, &oe)
}

// newConfigError builds a ConfigurationError without a cause.
func newConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

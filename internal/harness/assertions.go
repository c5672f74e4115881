package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/hopper"
)

// AssertionError is returned when an assertion fails. It carries the full
// trajectory so a failure message is debuggable on its own.
type AssertionError struct {
	Type       string
	Expected   string
	Actual     string
	Trajectory []hopper.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual:   %s\n", e.Actual)
	if len(e.Trajectory) > 0 {
		fmt.Fprintf(&buf, "\ntrajectory:\n")
		for _, ev := range e.Trajectory {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(ev))
		}
	}
	return buf.String()
}

// formatEvent renders one trajectory entry for failure messages.
func formatEvent(ev hopper.Event) string {
	return fmt.Sprintf("seq=%d tick=%d t=%g %s particle=%d %s -> %s",
		ev.Seq, ev.Tick, ev.Time, ev.Kind, ev.Particle, site(ev.From), site(ev.To))
}

// site renders a site index, naming the off-track sentinel.
func site(n int) string {
	if n == hopper.Nowhere {
		return "off"
	}
	return fmt.Sprintf("%d", n)
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages. The result itself is not mutated.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalSite:
			err = assertFinalSite(result, a)
		case AssertEventCount:
			err = assertEventCount(result.Trajectory, a)
		case AssertLogContains:
			err = assertLogContains(result.Trajectory, a)
		case AssertTerminated:
			err = assertTerminated(result, a)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertFinalSite checks that a particle survived and ended on the given
// site.
func assertFinalSite(result *Result, a Assertion) error {
	id := hopper.ID(a.Particle)
	pos, live := result.Site(id)
	if !live {
		return &AssertionError{
			Type:       AssertFinalSite,
			Expected:   fmt.Sprintf("particle %d at site %d", a.Particle, *a.Site),
			Actual:     fmt.Sprintf("particle %d not on the track at the end of the run", a.Particle),
			Trajectory: result.Trajectory,
		}
	}
	if pos != *a.Site {
		return &AssertionError{
			Type:       AssertFinalSite,
			Expected:   fmt.Sprintf("particle %d at site %d", a.Particle, *a.Site),
			Actual:     fmt.Sprintf("particle %d at site %d", a.Particle, pos),
			Trajectory: result.Trajectory,
		}
	}
	return nil
}

// assertEventCount checks that matching events appear exactly Count
// times.
func assertEventCount(trajectory []hopper.Event, a Assertion) error {
	count := 0
	for _, ev := range trajectory {
		if string(ev.Kind) != a.Kind {
			continue
		}
		if a.Particle != 0 && ev.Particle != hopper.ID(a.Particle) {
			continue
		}
		count++
	}
	if count != a.Count {
		subject := fmt.Sprintf("%q events", a.Kind)
		if a.Particle != 0 {
			subject = fmt.Sprintf("%q events for particle %d", a.Kind, a.Particle)
		}
		return &AssertionError{
			Type:       AssertEventCount,
			Expected:   fmt.Sprintf("%d %s", a.Count, subject),
			Actual:     fmt.Sprintf("%d", count),
			Trajectory: trajectory,
		}
	}
	return nil
}

// assertLogContains checks that at least one event matches every given
// field.
func assertLogContains(trajectory []hopper.Event, a Assertion) error {
	for _, ev := range trajectory {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:       AssertLogContains,
		Expected:   describeMatch(a),
		Actual:     "no matching event in the trajectory",
		Trajectory: trajectory,
	}
}

// assertTerminated checks natural-termination state against the expected
// value.
func assertTerminated(result *Result, a Assertion) error {
	if result.Finished == a.Value {
		return nil
	}
	return &AssertionError{
		Type:       AssertTerminated,
		Expected:   fmt.Sprintf("terminated=%t", a.Value),
		Actual:     fmt.Sprintf("terminated=%t at tick %d", result.Finished, result.Tick),
		Trajectory: result.Trajectory,
	}
}

// matchEvent reports whether an event satisfies every field the
// assertion sets.
func matchEvent(ev hopper.Event, a Assertion) bool {
	if a.Kind != "" && string(ev.Kind) != a.Kind {
		return false
	}
	if a.Particle != 0 && ev.Particle != hopper.ID(a.Particle) {
		return false
	}
	if a.From != nil && ev.From != *a.From {
		return false
	}
	if a.To != nil && ev.To != *a.To {
		return false
	}
	return true
}

// describeMatch renders the fields a log_contains assertion demands.
func describeMatch(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", a.Kind))
	}
	if a.Particle != 0 {
		parts = append(parts, fmt.Sprintf("particle=%d", a.Particle))
	}
	if a.From != nil {
		parts = append(parts, fmt.Sprintf("from=%d", *a.From))
	}
	if a.To != nil {
		parts = append(parts, fmt.Sprintf("to=%d", *a.To))
	}
	return "an event with " + strings.Join(parts, " ")
}

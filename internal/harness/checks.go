package harness

import (
	"fmt"

	"github.com/roach88/hopper"
)

// VerifyDeterminism runs a case twice from scratch and demands
// entry-identical trajectories. Any divergence means some state outside
// the run's seed and configuration leaked into the outcome.
func VerifyDeterminism(scn *Scenario) error {
	spec, err := compileScenario(scn)
	if err != nil {
		return err
	}
	first, err := execute(spec)
	if err != nil {
		return fmt.Errorf("first run: %w", err)
	}
	second, err := execute(spec)
	if err != nil {
		return fmt.Errorf("second run: %w", err)
	}

	if len(first.Trajectory) != len(second.Trajectory) {
		return fmt.Errorf("scenario %q is nondeterministic: %d events on the first run, %d on the second",
			scn.Name, len(first.Trajectory), len(second.Trajectory))
	}
	for i := range first.Trajectory {
		if first.Trajectory[i] != second.Trajectory[i] {
			return fmt.Errorf("scenario %q is nondeterministic: runs diverge at entry %d: %s vs %s",
				scn.Name, i, formatEvent(first.Trajectory[i]), formatEvent(second.Trajectory[i]))
		}
	}
	return nil
}

// occupancyErrors re-checks the single-occupancy rule over the final
// roster. The engine verifies this after every commit; the harness
// repeats it over the snapshot it hands to assertions, so harness and
// engine cannot silently drift apart.
func occupancyErrors(result *Result) []string {
	var errs []string
	seen := make(map[int]hopper.ID, len(result.Particles))
	for _, p := range result.Particles {
		if other, taken := seen[p.Pos]; taken {
			errs = append(errs, fmt.Sprintf(
				"single occupancy violated: particles %d and %d both finished on site %d", other, p.ID, p.Pos))
			continue
		}
		seen[p.Pos] = p.ID
	}
	return errs
}

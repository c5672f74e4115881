package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/compiler"
	"github.com/roach88/hopper/internal/scenario"
	"github.com/roach88/hopper/internal/testutil"
	"github.com/roach88/hopper/traits"
)

// Run executes one case: compile its CUE scenario, bind the bundled trait
// catalog, run the engine to the declared limit, and evaluate the
// assertions against the trajectory and final state.
//
// An error means the case could not be executed (compile failure, schema
// violation, the engine refusing the configuration, or a rule failing
// mid-run). Assertion failures are not errors; they come back on the
// Result.
func Run(scn *Scenario) (*Result, error) {
	spec, err := compileScenario(scn)
	if err != nil {
		return nil, err
	}
	result, err := execute(spec)
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scn.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range occupancyErrors(result) {
		result.AddError(msg)
	}
	return result, nil
}

// compileScenario compiles and schema-checks the CUE file a case points
// at.
func compileScenario(scn *Scenario) (*scenario.Spec, error) {
	spec, err := compiler.CompileFile(scn.Spec)
	if err != nil {
		return nil, fmt.Errorf("compile scenario %s: %w", scn.Spec, err)
	}
	if verrs := spec.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("invalid scenario %s: %s", scn.Spec, strings.Join(msgs, "; "))
	}
	return spec, nil
}

// execute runs one compiled spec to its limit and snapshots the outcome.
// Engine logs are suppressed; harness runs answer only through the
// Result.
func execute(spec *scenario.Spec) (*Result, error) {
	cfg, roster, err := scenario.Build(spec, traits.Catalog())
	if err != nil {
		return nil, fmt.Errorf("bind scenario %q: %w", spec.Name, err)
	}
	cfg.Logger = testutil.Quiet()

	sim, err := hopper.New(cfg, roster...)
	if err != nil {
		return nil, fmt.Errorf("configure scenario %q: %w", spec.Name, err)
	}
	events, err := sim.RunUntil(context.Background(), spec.Limit)
	if err != nil {
		return nil, fmt.Errorf("run scenario %q: %w", spec.Name, err)
	}

	result := NewResult()
	result.Mode = spec.EffectiveMode()
	result.Seed = spec.Seed
	result.Trajectory = events
	result.Particles = sim.Particles()
	result.Finished = sim.Finished()
	result.Tick = sim.Tick()
	result.Time = sim.Now()
	return result, nil
}

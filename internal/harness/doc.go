// Package harness runs scenario-based conformance tests against the
// simulation engine.
//
// A test case is a YAML file pointing at a CUE scenario declaration and
// listing assertions over the run's trajectory and final state. The
// harness compiles the scenario, binds the bundled trait catalog, runs
// the engine to the declared limit, and evaluates the assertions.
//
// # Case Format
//
// Cases are YAML files with the following structure:
//
//	name: walker_exits_right
//	description: "A lone walker marches off the open right end"
//	spec: walker_exits_right.cue
//	assertions:
//	  - type: event_count
//	    kind: move
//	    count: 3
//	  - type: log_contains
//	    kind: exit
//	    particle: 1
//	  - type: terminated
//	    value: true
//
// The spec path is resolved relative to the YAML file's directory.
// Particle numbering in assertions follows creation order: markers on
// marked ends are placed first and take the lowest IDs, then the roster
// in declaration order.
//
// # Assertion Types
//
//   - final_site: a particle ends the run on a given site
//   - event_count: events matching a kind (and optionally a particle)
//     appear exactly N times
//   - log_contains: at least one event matches every given field
//     (kind, particle, from, to)
//   - terminated: the run did or did not end naturally before the limit
//
// # Determinism
//
// Scenario runs are reproducible by construction: the engine draws all
// randomness from the scenario's seed and stamps commits from a logical
// clock, so the same case produces a byte-identical trajectory every
// time. RunWithGolden pins that encoding against a golden file, and
// VerifyDeterminism replays a case from scratch and demands an identical
// trajectory.
//
// # Usage
//
// Load and run one case:
//
//	scn, err := harness.LoadScenario("testdata/scenarios/drift.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := harness.Run(scn)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !result.Pass {
//		for _, msg := range result.Errors {
//			log.Println(msg)
//		}
//	}
//
// Run a whole directory (this is what `hopper test` does):
//
//	suite, err := harness.RunDir("testdata/scenarios")
package harness

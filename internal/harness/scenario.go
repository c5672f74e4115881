package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hopper"
)

// Scenario is one conformance test case: a pointer to a CUE scenario
// declaration plus the assertions its run must satisfy.
type Scenario struct {
	// Name uniquely identifies this case. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this case demonstrates.
	Description string `yaml:"description"`

	// Spec is the path to the CUE scenario file, relative to the YAML
	// file's directory.
	Spec string `yaml:"spec"`

	// Assertions validate the trajectory and final state.
	// Supported types: final_site, event_count, log_contains, terminated.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of a finished run.
type Assertion struct {
	// Type selects the check: final_site, event_count, log_contains or
	// terminated.
	Type string `yaml:"type"`

	// Particle names the particle under test (final_site), or narrows the
	// match (event_count, log_contains). Zero means any particle.
	Particle int64 `yaml:"particle,omitempty"`

	// Site is the expected final site (final_site).
	Site *int `yaml:"site,omitempty"`

	// Kind filters events by kind (event_count, log_contains).
	Kind string `yaml:"kind,omitempty"`

	// Count is the exact expected number of matches (event_count).
	Count int `yaml:"count,omitempty"`

	// From and To match event endpoints (log_contains). An omitted field
	// matches anything; -1 matches off-track.
	From *int `yaml:"from,omitempty"`
	To   *int `yaml:"to,omitempty"`

	// Value is the expected termination state (terminated). Defaults to
	// false, asserting the limit cut the run off.
	Value bool `yaml:"value,omitempty"`
}

// Assertion type names.
const (
	AssertFinalSite   = "final_site"
	AssertEventCount  = "event_count"
	AssertLogContains = "log_contains"
	AssertTerminated  = "terminated"
)

// validKinds are the event kinds assertions may reference.
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

// LoadScenario reads and parses a case YAML file. The spec path is
// resolved relative to the YAML file's directory. Returns an error for a
// missing file, malformed YAML, unknown fields (typos), missing required
// fields, or a spec file that does not exist.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scn Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // a typo must not silently drop an assertion
	if err := dec.Decode(&scn); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if scn.Spec != "" && !filepath.IsAbs(scn.Spec) {
		scn.Spec = filepath.Join(filepath.Dir(path), scn.Spec)
	}

	if err := validateScenario(&scn); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scn, nil
}

// validateScenario checks required fields and per-type assertion shape.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates one assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Kind != "" && !validKinds[a.Kind] {
		return fmt.Errorf("assertions[%d]: unknown event kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertFinalSite:
		if a.Particle <= 0 {
			return fmt.Errorf("assertions[%d]: particle is required for final_site", index)
		}
		if a.Site == nil {
			return fmt.Errorf("assertions[%d]: site is required for final_site", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertLogContains:
		if a.Kind == "" && a.Particle == 0 && a.From == nil && a.To == nil {
			return fmt.Errorf("assertions[%d]: log_contains needs at least one of kind, particle, from, to", index)
		}
	case AssertTerminated:
		// value alone; false is a meaningful expectation
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

package harness

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SuiteResult summarizes running every case in a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed case with the reason.
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// RunDir loads and runs every *.yaml case under dir, in name order.
func RunDir(dir string) (*SuiteResult, error) {
	return RunGlob(filepath.Join(dir, "*.yaml"))
}

// RunGlob loads and runs every case matching pattern, in name order. Each
// case is executed once for its assertions and replayed once more for the
// determinism check; either failing fails the case.
func RunGlob(pattern string) (*SuiteResult, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}

	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")

		scn, err := LoadScenario(path)
		if err != nil {
			suite.fail(name, path, err.Error())
			continue
		}
		result, err := Run(scn)
		if err != nil {
			suite.fail(scn.Name, path, err.Error())
			continue
		}
		if !result.Pass {
			suite.fail(scn.Name, path, strings.Join(result.Errors, "\n"))
			continue
		}
		if err := VerifyDeterminism(scn); err != nil {
			suite.fail(scn.Name, path, err.Error())
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(name, path, msg string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{Scenario: name, Path: path, Error: msg})
}

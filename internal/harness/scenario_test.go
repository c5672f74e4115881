package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSpecFile drops a placeholder CUE file for load tests. LoadScenario
// only checks that the file exists; compilation happens at run time.
func writeSpecFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("scenario: {}\n"), 0o644))
	return path
}

// writeCaseFile drops a case YAML into dir and returns its path.
func writeCaseFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFile(t, dir, "drift.cue")

	content := `
name: drift
description: "A walker drifts to the right"
spec: ` + specPath + `
assertions:
  - type: final_site
    particle: 1
    site: 3
  - type: event_count
    kind: move
    count: 2
  - type: log_contains
    kind: exit
    particle: 1
    from: 3
    to: -1
  - type: terminated
    value: true
`
	path := writeCaseFile(t, dir, "case.yaml", content)

	scn, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "drift", scn.Name)
	assert.Equal(t, "A walker drifts to the right", scn.Description)
	assert.Equal(t, specPath, scn.Spec)
	require.Len(t, scn.Assertions, 4)

	assert.Equal(t, AssertFinalSite, scn.Assertions[0].Type)
	assert.Equal(t, int64(1), scn.Assertions[0].Particle)
	require.NotNil(t, scn.Assertions[0].Site)
	assert.Equal(t, 3, *scn.Assertions[0].Site)

	assert.Equal(t, AssertEventCount, scn.Assertions[1].Type)
	assert.Equal(t, "move", scn.Assertions[1].Kind)
	assert.Equal(t, 2, scn.Assertions[1].Count)

	assert.Equal(t, AssertLogContains, scn.Assertions[2].Type)
	require.NotNil(t, scn.Assertions[2].From)
	assert.Equal(t, 3, *scn.Assertions[2].From)
	require.NotNil(t, scn.Assertions[2].To)
	assert.Equal(t, -1, *scn.Assertions[2].To)

	assert.Equal(t, AssertTerminated, scn.Assertions[3].Type)
	assert.True(t, scn.Assertions[3].Value)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/case.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeCaseFile(t, dir, "case.yaml", `
name: broken
description: "Test"
assertions: [unclosed
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing_name",
			yaml: `
description: "Test"
spec: SPEC
assertions:
  - type: terminated
`,
			wantErr: "name is required",
		},
		{
			name: "missing_description",
			yaml: `
name: test
spec: SPEC
assertions:
  - type: terminated
`,
			wantErr: "description is required",
		},
		{
			name: "missing_spec",
			yaml: `
name: test
description: "Test"
assertions:
  - type: terminated
`,
			wantErr: "spec is required",
		},
		{
			name: "missing_assertions",
			yaml: `
name: test
description: "Test"
spec: SPEC
assertions: []
`,
			wantErr: "assertions list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			specPath := writeSpecFile(t, dir, "case.cue")
			content := replaceSpecToken(tt.yaml, specPath)
			path := writeCaseFile(t, dir, "case.yaml", content)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// replaceSpecToken substitutes the SPEC placeholder so table entries stay
// readable without fmt.Sprintf noise.
func replaceSpecToken(yaml, specPath string) string {
	return strings.ReplaceAll(yaml, "SPEC", specPath)
}

func TestLoadScenario_SpecFileNotFound(t *testing.T) {
	dir := t.TempDir()
	path := writeCaseFile(t, dir, "case.yaml", `
name: test
description: "Test"
spec: /nonexistent/case.cue
assertions:
  - type: terminated
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestLoadScenario_RelativeSpecResolved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "specs"), 0o755))
	writeSpecFile(t, filepath.Join(dir, "specs"), "drift.cue")

	path := writeCaseFile(t, dir, "case.yaml", `
name: test
description: "Relative spec path"
spec: specs/drift.cue
assertions:
  - type: terminated
`)

	scn, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "specs", "drift.cue"), scn.Spec)
}

func TestLoadScenario_AbsoluteSpecKept(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFile(t, dir, "drift.cue")

	// The case file lives elsewhere; an absolute spec path must not be
	// joined against its directory.
	otherDir := t.TempDir()
	path := writeCaseFile(t, otherDir, "case.yaml", fmt.Sprintf(`
name: test
description: "Absolute spec path"
spec: %s
assertions:
  - type: terminated
`, specPath))

	scn, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, specPath, scn.Spec)
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	// Typos must fail loudly, not silently drop an assertion.
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "typo_assertion_singular",
			yaml: `
name: test
description: "Test"
spec: SPEC
assertion:
  - type: terminated
assertions:
  - type: terminated
`,
			wantErr: "field assertion not found",
		},
		{
			name: "typo_inside_assertion",
			yaml: `
name: test
description: "Test"
spec: SPEC
assertions:
  - type: event_count
    kinds: move
    count: 2
`,
			wantErr: "field kinds not found",
		},
		{
			name: "unknown_top_level_field",
			yaml: `
name: test
description: "Test"
spec: SPEC
golden: true
assertions:
  - type: terminated
`,
			wantErr: "field golden not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			specPath := writeSpecFile(t, dir, "case.cue")
			path := writeCaseFile(t, dir, "case.yaml", replaceSpecToken(tt.yaml, specPath))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name          string
		assertionYAML string
		wantErr       string
	}{
		{
			name: "final_site_valid",
			assertionYAML: `
  - type: final_site
    particle: 1
    site: 0
`,
			wantErr: "",
		},
		{
			name: "final_site_missing_particle",
			assertionYAML: `
  - type: final_site
    site: 0
`,
			wantErr: "particle is required for final_site",
		},
		{
			name: "final_site_missing_site",
			assertionYAML: `
  - type: final_site
    particle: 1
`,
			wantErr: "site is required for final_site",
		},
		{
			name: "event_count_valid",
			assertionYAML: `
  - type: event_count
    kind: move
    count: 3
`,
			wantErr: "",
		},
		{
			name: "event_count_zero_count",
			assertionYAML: `
  - type: event_count
    kind: expire
    count: 0
`,
			// Zero asserts the kind does not appear at all.
			wantErr: "",
		},
		{
			name: "event_count_negative_count",
			assertionYAML: `
  - type: event_count
    kind: move
    count: -1
`,
			wantErr: "count must be non-negative for event_count",
		},
		{
			name: "event_count_missing_kind",
			assertionYAML: `
  - type: event_count
    count: 2
`,
			wantErr: "kind is required for event_count",
		},
		{
			name: "event_count_unknown_kind",
			assertionYAML: `
  - type: event_count
    kind: teleport
    count: 1
`,
			wantErr: `unknown event kind "teleport"`,
		},
		{
			name: "log_contains_kind_only",
			assertionYAML: `
  - type: log_contains
    kind: exit
`,
			wantErr: "",
		},
		{
			name: "log_contains_endpoints_only",
			assertionYAML: `
  - type: log_contains
    from: 0
    to: 1
`,
			wantErr: "",
		},
		{
			name: "log_contains_no_fields",
			assertionYAML: `
  - type: log_contains
`,
			wantErr: "log_contains needs at least one of",
		},
		{
			name: "terminated_valid",
			assertionYAML: `
  - type: terminated
    value: true
`,
			wantErr: "",
		},
		{
			name: "terminated_default_false",
			assertionYAML: `
  - type: terminated
`,
			wantErr: "",
		},
		{
			name: "unknown_type",
			assertionYAML: `
  - type: trace_contains
`,
			wantErr: "unknown assertion type",
		},
		{
			name: "missing_type",
			assertionYAML: `
  - kind: move
`,
			wantErr: "type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			specPath := writeSpecFile(t, dir, "case.cue")

			content := `
name: test
description: "Test"
spec: ` + specPath + `
assertions:` + tt.assertionYAML
			path := writeCaseFile(t, dir, "case.yaml", content)

			_, err := LoadScenario(path)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "final_site", AssertFinalSite)
	assert.Equal(t, "event_count", AssertEventCount)
	assert.Equal(t, "log_contains", AssertLogContains)
	assert.Equal(t, "terminated", AssertTerminated)
}

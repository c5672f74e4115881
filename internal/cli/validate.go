package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hopper/internal/compiler"
)

// FileReport holds the validation findings for one scenario file.
type FileReport struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationResult holds the overall validate outcome.
type ValidationResult struct {
	Files   []FileReport `json:"files"`
	Checked int          `json:"checked"`
	Invalid int          `json:"invalid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.cue|dir>",
		Short: "Compile and validate scenarios",
		Long: `Compile CUE scenarios and check them against the schema rules.

The argument may name a single scenario file or a directory; a directory
is validated file by file, collecting every violation rather than
stopping at the first.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (path not found, no CUE files)

Examples:
  hopper validate ./scenarios
  hopper validate ./scenarios/walker.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := scenarioFiles(path)
	if err != nil {
		_ = formatter.Error("E_PATH", err.Error(), nil)
		return err
	}

	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	result := ValidationResult{Checked: len(files)}
	for _, file := range files {
		report := validateFile(file)
		result.Files = append(result.Files, report)
		if !report.Valid {
			result.Invalid++
		}
	}

	if opts.Format == "json" {
		return outputValidateJSON(cmd, result)
	}
	return outputValidateText(cmd, result)
}

// validateFile compiles one scenario and collects every schema
// violation. A compile failure short-circuits: there is no spec to
// check.
func validateFile(path string) FileReport {
	report := FileReport{Path: path, Valid: true}

	spec, err := compiler.CompileFile(path)
	if err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	for _, verr := range spec.Validate() {
		report.Valid = false
		report.Errors = append(report.Errors, verr.Error())
	}
	return report
}

// outputValidateJSON outputs the validation result as JSON.
func outputValidateJSON(cmd *cobra.Command, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Invalid > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCHEMA",
			Message: fmt.Sprintf("%d of %d scenario(s) invalid", result.Invalid, result.Checked),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", result.Invalid))
	}
	return nil
}

// outputValidateText outputs the validation result as text.
func outputValidateText(cmd *cobra.Command, result ValidationResult) error {
	w := cmd.OutOrStdout()

	for _, report := range result.Files {
		if report.Valid {
			fmt.Fprintf(w, "✓ %s\n", report.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", report.Path)
		for _, msg := range report.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}

	fmt.Fprintln(w)
	if result.Invalid > 0 {
		fmt.Fprintf(w, "Validation failed: %d of %d scenario(s) invalid\n", result.Invalid, result.Checked)
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", result.Invalid))
	}

	fmt.Fprintf(w, "✓ All %d scenario(s) valid\n", result.Checked)
	return nil
}

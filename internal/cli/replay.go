package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/scenario"
	"github.com/roach88/hopper/internal/store"
	"github.com/roach88/hopper/traits"
)

// maxShownDivergences caps the divergence lines printed per run unless
// --verbose is set.
const maxShownDivergences = 5

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayRunResult holds the verification outcome for one run.
type ReplayRunResult struct {
	RunID         string   `json:"run_id"`
	Name          string   `json:"name"`
	Stored        int      `json:"stored"`
	Replayed      int      `json:"replayed"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay outcome.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute stored runs and verify determinism",
		Long: `Re-execute recorded runs from their stored scenarios and verify that
the replayed trajectory matches the stored one event for event.

Each run's scenario is rebuilt from the spec recorded at run time, so a
replay answers: does the same scenario, with the same seed, still
produce the same trajectory? Every field-level divergence is reported,
not just the first.

Only finished runs are replayed; failed and stopped runs hold partial
trajectories.

Exit codes:
  0 - All replayed runs are deterministic
  1 - Divergences detected
  2 - Command error (database not found, unknown run)

Examples:
  hopper replay --db ./runs.db
  hopper replay --db ./runs.db --run 0190c558-7b2a-7c3d-8000-0242ac120002
  hopper replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.DefaultDB, "path to the run database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "database path required (set --db or HOPPER_DB)")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	runs, err := selectRuns(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No finished runs in database.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// selectRuns resolves the --run flag to the runs to verify: one named
// run, or every finished run in the database.
func selectRuns(ctx context.Context, st *store.Store, runID string) ([]store.Run, error) {
	if runID != "" {
		run, err := st.ReadRun(ctx, runID)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read run", err)
		}
		if run.Status != store.StatusFinished {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("run %s is %s; only finished runs replay deterministically", run.ID, run.Status))
		}
		return []store.Run{run}, nil
	}

	all, err := st.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "list runs", err)
	}
	var finished []store.Run
	for _, run := range all {
		if run.Status == store.StatusFinished {
			finished = append(finished, run)
		}
	}
	return finished, nil
}

// replayRun re-executes one run from its stored spec and compares the
// fresh trajectory against the stored one. Engine logs are discarded;
// the report is the output.
func replayRun(ctx context.Context, st *store.Store, run store.Run) (ReplayRunResult, error) {
	cfg, roster, err := scenario.Build(run.Spec, traits.Catalog())
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("bind scenario %q: %w", run.Name, err)
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	sim, err := hopper.New(cfg, roster...)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("configure scenario %q: %w", run.Name, err)
	}
	events, err := sim.RunUntil(ctx, run.Spec.Limit)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("re-run scenario %q: %w", run.Name, err)
	}

	report, err := st.Verify(ctx, run.ID, events)
	if err != nil {
		return ReplayRunResult{}, err
	}

	runResult := ReplayRunResult{
		RunID:         run.ID,
		Name:          run.Name,
		Stored:        report.Stored,
		Replayed:      report.Replayed,
		Deterministic: report.Deterministic(),
	}
	for _, d := range report.Divergences {
		runResult.Divergences = append(runResult.Divergences, d.String())
	}
	return runResult, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", status, run.RunID, run.Name)
		fmt.Fprintf(w, "  Stored: %d event(s), replayed: %d\n", run.Stored, run.Replayed)

		if !run.Deterministic {
			shown := run.Divergences
			if !verbose && len(shown) > maxShownDivergences {
				shown = shown[:maxShownDivergences]
			}
			for _, d := range shown {
				fmt.Fprintf(w, "  %s\n", d)
			}
			if hidden := len(run.Divergences) - len(shown); hidden > 0 {
				fmt.Fprintf(w, "  ... %d more divergence(s), rerun with --verbose\n", hidden)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs replayed deterministically")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}

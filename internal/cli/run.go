package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/compiler"
	"github.com/roach88/hopper/internal/scenario"
	"github.com/roach88/hopper/internal/store"
	"github.com/roach88/hopper/traits"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// IDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs store.IDGenerator
}

// RunSummary is the reported outcome of one run.
type RunSummary struct {
	RunID    string  `json:"run_id,omitempty"`
	Name     string  `json:"name"`
	Mode     string  `json:"mode"`
	Seed     int64   `json:"seed"`
	Events   int     `json:"events"`
	Tick     int64   `json:"tick"`
	Time     float64 `json:"time"`
	Finished bool    `json:"finished"`
	Status   string  `json:"status"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.cue>",
		Short: "Run a scenario to its limit",
		Long: `Compile a CUE scenario and run it to its declared limit.

With --db the run is recorded: a run row is written before the first
step and the full trajectory is appended once the run stops, so it can
be replayed and traced later. Without --db the run is ephemeral.

Interrupts (Ctrl-C, SIGTERM) request a cooperative stop; the run ends
at the next step boundary with everything committed so far intact.

Exit codes:
  0 - Run completed (or was stopped by a signal)
  1 - Run aborted (rule failure, invariant violation)
  2 - Command error (compile failure, schema violation, bad paths)

Examples:
  hopper run ./scenarios/walker.cue
  hopper run ./scenarios/drift.cue --db ./runs.db
  hopper run ./scenarios/drift.cue --db ./runs.db --format json -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.DefaultDB, "record the run in this SQLite database")

	return cmd
}

func runSimulation(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	spec, err := compiler.CompileFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile scenario", err)
	}
	if verrs := spec.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, verr := range verrs {
			msgs[i] = verr.Error()
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid scenario: %s", strings.Join(msgs, "; ")))
	}

	cfg, roster, err := scenario.Build(spec, traits.Catalog())
	if err != nil {
		return WrapExitError(ExitCommandError, "bind scenario", err)
	}
	cfg.Logger = logger

	sim, err := hopper.New(cfg, roster...)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure scenario", err)
	}

	// Use command's context if available (for testing), otherwise create one
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var st *store.Store
	var run store.Run
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("close database", "error", closeErr)
			}
		}()

		gen := opts.IDs
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		run, err = store.NewRun(gen.Generate(), spec)
		if err != nil {
			return WrapExitError(ExitCommandError, "record run", err)
		}
		if err := st.BeginRun(ctx, run); err != nil {
			return WrapExitError(ExitCommandError, "record run", err)
		}
	}

	// A signal requests a cooperative stop: the run ends at the next step
	// boundary instead of mid-commit.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var interrupted atomic.Bool
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case sig := <-sigChan:
			interrupted.Store(true)
			logger.Info("signal received, stopping at next step boundary", "signal", sig)
			sim.Stop()
		case <-stopWatch:
		}
	}()

	logger.Info("run starting",
		"scenario", spec.Name,
		"mode", spec.EffectiveMode(),
		"seed", spec.Seed,
		"limit", spec.Limit,
	)
	events, runErr := sim.RunUntil(ctx, spec.Limit)

	status := store.StatusFinished
	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		logger.Info("run cancelled", "tick", sim.Tick())
		runErr = nil
		status = store.StatusStopped
	case runErr != nil:
		status = store.StatusFailed
	case interrupted.Load():
		status = store.StatusStopped
	}

	if st != nil {
		if err := st.AppendEvents(ctx, run.ID, events); err != nil {
			return WrapExitError(ExitCommandError, "persist trajectory", err)
		}
		if err := st.FinishRun(ctx, run.ID, status, sim.Tick(), sim.Now()); err != nil {
			return WrapExitError(ExitCommandError, "finalize run", err)
		}
	}

	summary := RunSummary{
		RunID:    run.ID,
		Name:     spec.Name,
		Mode:     spec.EffectiveMode(),
		Seed:     spec.Seed,
		Events:   len(events),
		Tick:     sim.Tick(),
		Time:     sim.Now(),
		Finished: sim.Finished(),
		Status:   status,
	}

	if opts.Format == "json" {
		if err := outputRunJSON(cmd, summary, runErr); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, summary, runErr)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "run aborted", runErr)
	}
	return nil
}

// outputRunJSON outputs the run summary as JSON.
func outputRunJSON(cmd *cobra.Command, summary RunSummary, runErr error) error {
	response := CLIResponse{Status: "ok", Data: summary}
	if runErr != nil {
		response.Status = "error"
		response.Error = &CLIError{Code: "E_RUN", Message: runErr.Error()}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputRunText outputs the run summary as text.
func outputRunText(cmd *cobra.Command, summary RunSummary, runErr error) {
	w := cmd.OutOrStdout()

	symbol := "✓"
	if runErr != nil {
		symbol = "✗"
	}
	fmt.Fprintf(w, "%s %s (%s, seed %d): %d event(s), tick %d, t=%g [%s]\n",
		symbol, summary.Name, summary.Mode, summary.Seed,
		summary.Events, summary.Tick, summary.Time, summary.Status)
	if summary.RunID != "" {
		fmt.Fprintf(w, "  Run ID: %s\n", summary.RunID)
	}
	if runErr != nil {
		fmt.Fprintf(w, "  %v\n", runErr)
	}
}

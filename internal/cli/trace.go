package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/query"
	"github.com/roach88/hopper/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Particle int64
	Kinds    []string
	FromTick int64
	ToTick   int64
	Limit    int
}

// TraceResult holds the filtered timeline for one run.
type TraceResult struct {
	RunID  string         `json:"run_id"`
	Name   string         `json:"name"`
	Events []hopper.Event `json:"events"`
	Total  int            `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a stored trajectory",
		Long: `Query one run's stored trajectory, filtered by particle, event kind
and tick range.

Events print in commit order (the seq column), so a filtered view reads
the same way the engine committed it.

Examples:
  hopper trace --db ./runs.db --run 0190c558-7b2a-7c3d-8000-0242ac120002
  hopper trace --db ./runs.db --run 0190c558-... --particle 2
  hopper trace --db ./runs.db --run 0190c558-... --kind move --kind swap
  hopper trace --db ./runs.db --run 0190c558-... --from-tick 10 --to-tick 20 --limit 50`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.DefaultDB, "path to the run database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().Int64Var(&opts.Particle, "particle", 0, "restrict to one particle's events")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "restrict to event kinds (repeatable)")
	cmd.Flags().Int64Var(&opts.FromTick, "from-tick", -1, "inclusive tick lower bound")
	cmd.Flags().Int64Var(&opts.ToTick, "to-tick", -1, "inclusive tick upper bound")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap the number of events returned")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "database path required (set --db or HOPPER_DB)")
	}

	filter := query.NewFilter(opts.RunID)
	filter.Particle = opts.Particle
	filter.Kinds = opts.Kinds
	filter.FromTick = opts.FromTick
	filter.ToTick = opts.ToTick
	filter.Limit = opts.Limit

	if verrs := filter.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, verr := range verrs {
			msgs[i] = verr.Error()
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid filter: %s", strings.Join(msgs, "; ")))
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

	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "read run", err)
	}

	events, err := st.FilterEvents(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "filter events", err)
	}

	result := TraceResult{RunID: run.ID, Name: run.Name, Events: events, Total: len(events)}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result)
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as a timeline.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for run %s (%s)\n", result.RunID, result.Name)
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no matching events)")
		return nil
	}
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  %s\n", formatTraceEvent(ev))
	}
	fmt.Fprintf(w, "%d event(s)\n", result.Total)
	return nil
}

// formatTraceEvent renders one trajectory entry as a timeline line.
func formatTraceEvent(ev hopper.Event) string {
	return fmt.Sprintf("seq=%d tick=%d t=%g %s particle=%d %s -> %s",
		ev.Seq, ev.Tick, ev.Time, ev.Kind, ev.Particle, traceSite(ev.From), traceSite(ev.To))
}

// traceSite renders a site index, with Nowhere shown as "off".
func traceSite(n int) string {
	if n == hopper.Nowhere {
		return "off"
	}
	return fmt.Sprintf("%d", n)
}

package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// DefaultDB seeds the --db flag on commands that touch a run
	// database. Comes from HOPPER_DB; an explicit flag always wins.
	DefaultDB string
}

// envDefaults are the environment-supplied flag defaults.
type envDefaults struct {
	Database string `env:"HOPPER_DB"`
	Format   string `env:"HOPPER_FORMAT" envDefault:"text"`
	Verbose  bool   `env:"HOPPER_VERBOSE"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hopper CLI. Flag
// defaults come from the environment (HOPPER_DB, HOPPER_FORMAT,
// HOPPER_VERBOSE); explicit flags override them.
func NewRootCommand() (*cobra.Command, error) {
	var defaults envDefaults
	if err := env.Parse(&defaults); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	opts := &RootOptions{DefaultDB: defaults.Database}

	cmd := &cobra.Command{
		Use:   "hopper",
		Short: "Hopper - particles on a track",
		Long:  "A deterministic simulation framework for rule-driven particles on one-dimensional tracks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", defaults.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", defaults.Format, "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

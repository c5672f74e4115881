package main

import (
	"fmt"
	"os"

	"github.com/roach88/hopper/internal/cli"
)

// main builds the command tree and maps command errors to process exit
// codes. Commands print their own diagnostics; this only echoes the
// final error.
func main() {
	cmd, err := cli.NewRootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCommandError)
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

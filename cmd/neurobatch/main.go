// Package main provides the entry point for the neurobatch CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synaptiq-labs/neurobatch/cmd/neurobatch/commands"
	"github.com/synaptiq-labs/neurobatch/pkg/batch"
	"github.com/synaptiq-labs/neurobatch/pkg/version"
)

// exitCodeCheckOnly signals a verification-only run that stopped before
// analysis, so callers can tell it apart from real failures.
const exitCodeCheckOnly = 2

func main() {
	version.Init()

	rootCmd := &cobra.Command{
		Use:   "neurobatch",
		Short: "Neurobatch - batch analysis orchestration for neural recordings",
		Long: `Neurobatch discovers recording parameter files, runs configured
analysis functions over every recording and aggregates the results.

Commands:
  run       Execute one analysis pass over a directory or parameter file
  batch     Execute every entry of a run configuration
  merge     Combine per-recording CSV outputs into single tables
  validate  Validate a run configuration against the schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.RegisterGlobalFlags(rootCmd)

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewBatchCommand())
	rootCmd.AddCommand(commands.NewMergeCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, batch.ErrCheckOnly) {
			fmt.Fprintln(os.Stdout, "Batch setup verified, no analysis performed.")
			os.Exit(exitCodeCheckOnly)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "neurobatch %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

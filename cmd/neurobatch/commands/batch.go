package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/synaptiq-labs/neurobatch/pkg/batch"
)

// BatchCommand holds configuration for the multi-run batch command.
type BatchCommand struct {
	index      int
	overwrite  bool
	check      bool
	noColor    bool
	fnOverride string

	out io.Writer
}

// NewBatchCommand creates the batch command: every entry of a run
// configuration, with caching and optional failure isolation.
func NewBatchCommand() *cobra.Command {
	batchCmd := &BatchCommand{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "batch <run-config.yaml>",
		Short: "Execute every entry of a run configuration",
		Long: `Execute every entry of a run configuration in order. A finished batch
leaves a results dump next to the configuration; re-running restores it
instead of repeating the analysis.

Examples:
  neurobatch batch configs/run.yaml
  neurobatch batch configs/run.yaml --index 2
  neurobatch batch configs/run.yaml --overwrite --fn-config alt-fns.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return batchCmd.Execute(cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&batchCmd.index, "index", "i", -1, "run only this run_list entry (0-based)")
	cmd.Flags().BoolVar(&batchCmd.overwrite, "overwrite", false, "ignore an existing results dump and re-run")
	cmd.Flags().StringVarP(&batchCmd.fnOverride, "fn-config", "f", "", "replace every entry's function configuration")
	cmd.Flags().BoolVar(&batchCmd.check, "check", false, "verify batch setup without running analysis")
	cmd.Flags().BoolVar(&batchCmd.noColor, "no-color", false, "disable colored output")

	return cmd
}

// Execute runs the batch and renders the per-iteration outcome table.
func (bc *BatchCommand) Execute(cmd *cobra.Command, configPath string) error {
	if bc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	config, err := batch.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// The configuration's logging level applies unless the flag set one.
	if logLevel == "" || logLevel == "info" {
		logLevel = config.Logging.Level
	}

	logger := newLogger()

	loaderReg, fnReg, err := defaultRegistries()
	if err != nil {
		return err
	}

	runner := batch.NewRunner(config, configPath, loaderReg, fnReg, logger)
	runner.Index = bc.index
	runner.Overwrite = bc.overwrite
	runner.FnOverride = bc.fnOverride
	runner.CheckOnly = bc.check

	agg, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(bc.out, "Batch complete: %d of %d iterations succeeded\n\n",
		len(agg.Entries), len(config.RunList))

	bc.renderAggregate(agg)

	return nil
}

// renderAggregate prints one row per completed iteration.
func (bc *BatchCommand) renderAggregate(agg *batch.Aggregate) {
	writer := table.NewWriter()
	writer.SetOutputMirror(bc.out)
	writer.SetStyle(table.StyleLight)

	writer.AppendHeader(table.Row{"Iteration", "Config", "Recordings", "Results"})

	for _, entry := range agg.Entries {
		resultCount := 0
		for _, items := range entry.Results {
			resultCount += len(items)
		}

		writer.AppendRow(table.Row{
			fmt.Sprintf("%d", entry.Iteration),
			entry.ConfigPath,
			len(entry.SourceFiles),
			resultCount,
		})
	}

	writer.Render()
}

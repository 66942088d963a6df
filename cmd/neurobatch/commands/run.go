package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/synaptiq-labs/neurobatch/pkg/batch"
)

// RunCommand holds configuration for the single-pass run command.
type RunCommand struct {
	fnConfig    string
	paramName   string
	sortBy      string
	summaryPath string
	sortReverse bool
	skipMissing bool
	eager       bool
	check       bool
	noColor     bool

	out io.Writer
}

// NewRunCommand creates the run command: one analysis pass over a
// directory tree or a single parameter file.
func NewRunCommand() *cobra.Command {
	runCmd := &RunCommand{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "run <directory|param-file>",
		Short: "Execute one analysis pass",
		Long: `Execute one analysis pass: discover recording parameter files under
the given directory (or use the single given file), run the functions
bound in the function configuration over every recording and write the
summary table.

Examples:
  neurobatch run --fn-config fns.yaml ./recordings
  neurobatch run --fn-config fns.yaml ./recordings/session1/recording_params.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd.Execute(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&runCmd.fnConfig, "fn-config", "f", "", "function configuration file (required)")
	cmd.Flags().StringVar(&runCmd.paramName, "param-name", "", "recording parameter file name to discover")
	cmd.Flags().StringVar(&runCmd.sortBy, "sort-by", "", "attribute path to sort recordings by")
	cmd.Flags().StringVar(&runCmd.summaryPath, "summary", "", "summary table output path")
	cmd.Flags().BoolVar(&runCmd.sortReverse, "sort-reverse", false, "reverse the sort order")
	cmd.Flags().BoolVar(&runCmd.skipMissing, "skip-missing", false, "leave missing summary attributes empty")
	cmd.Flags().BoolVar(&runCmd.eager, "eager", false, "disable the lazy single-slot cache")
	cmd.Flags().BoolVar(&runCmd.check, "check", false, "verify batch setup without running analysis")
	cmd.Flags().BoolVar(&runCmd.noColor, "no-color", false, "disable colored output")

	_ = cmd.MarkFlagRequired("fn-config")

	return cmd
}

// Execute runs the pass and renders the outcome.
func (rc *RunCommand) Execute(cmd *cobra.Command, location string) error {
	if rc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	logger := newLogger()

	loaderReg, fnReg, err := defaultRegistries()
	if err != nil {
		return err
	}

	opts, err := batch.LoadPassOptions(rc.fnConfig, fnReg)
	if err != nil {
		return err
	}

	rc.applyFlags(opts, location)

	orch := batch.NewOrchestrator(loaderReg, fnReg, logger)

	opts.KeepContainer = len(opts.Columns) > 0

	result, err := orch.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(rc.out, "Pass complete: %d recordings analyzed\n", len(result.Results))

	if result.SummaryPath != "" {
		fmt.Fprintf(rc.out, "Summary written to %s\n\n", result.SummaryPath)
	}

	if result.Container != nil && len(opts.Columns) > 0 {
		renderErr := result.Container.RenderSummary(rc.out, opts.Columns, opts.SkipMissing)
		if renderErr != nil {
			return renderErr
		}
	}

	return nil
}

// applyFlags folds the command flags into the loaded pass options.
func (rc *RunCommand) applyFlags(opts *batch.PassOptions, location string) {
	opts.Location = location
	opts.CheckOnly = rc.check

	if rc.paramName != "" {
		opts.ParamName = rc.paramName
	}

	if rc.sortBy != "" {
		opts.SortBy = rc.sortBy
		opts.SortReverse = rc.sortReverse
	}

	if rc.summaryPath != "" {
		opts.SummaryPath = rc.summaryPath
	}

	if rc.skipMissing {
		opts.SkipMissing = true
	}

	if rc.eager {
		opts.LoadAll = false
	}
}

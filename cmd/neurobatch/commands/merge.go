package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/synaptiq-labs/neurobatch/pkg/merge"
)

// NewMergeCommand creates the merge command: combine per-recording CSV
// outputs into one table per component.
func NewMergeCommand() *cobra.Command {
	var out io.Writer = os.Stdout

	cmd := &cobra.Command{
		Use:   "merge <results-dir>",
		Short: "Combine per-recording CSV outputs into single tables",
		Long: `Combine the per-recording CSV files under a results directory into one
table per component, written to <results-dir>/merged. Each merged row
carries the name of the file it came from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			written, err := merge.Dir(args[0], newLogger())
			if err != nil {
				return err
			}

			for _, path := range written {
				fmt.Fprintln(out, path)
			}

			return nil
		},
	}

	return cmd
}

package commands

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/synaptiq-labs/neurobatch/pkg/batch"
)

//go:embed run_config_schema.json
var runConfigSchema []byte

// ErrConfigInvalid indicates a run configuration that failed schema or
// semantic validation.
var ErrConfigInvalid = errors.New("run configuration is invalid")

// NewValidateCommand creates the validate command: schema and semantic
// checks for a run configuration file, without executing anything.
func NewValidateCommand() *cobra.Command {
	var noColor bool

	var out io.Writer = os.Stdout

	cmd := &cobra.Command{
		Use:   "validate <run-config.yaml>",
		Short: "Validate a run configuration against the schema",
		Long: `Validate a run configuration file against the configuration schema,
then run the same semantic checks the batch command applies. Nothing is
executed.

Examples:
  neurobatch validate configs/run.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(out, args[0], noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(out io.Writer, configPath string, noColor bool) error {
	if noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read run configuration: %w", err)
	}

	var document any

	err = yaml.Unmarshal(data, &document)
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "Not parseable as YAML (%s): %v\n", configPath, err)

		return fmt.Errorf("%w: %s", ErrConfigInvalid, configPath)
	}

	schemaLoader := gojsonschema.NewBytesLoader(runConfigSchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		color.New(color.FgRed).Fprintf(out, "Schema violations (%s):\n", configPath)

		for _, verr := range result.Errors() {
			color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", verr.Field(), verr.Description())
		}

		return fmt.Errorf("%w: %s", ErrConfigInvalid, configPath)
	}

	// Schema passed; apply the loader's semantic checks too.
	_, err = batch.LoadConfig(configPath)
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "Semantic check failed: %v\n", err)

		return fmt.Errorf("%w: %s", ErrConfigInvalid, configPath)
	}

	color.New(color.FgGreen).Fprintf(out, "Run configuration is valid (%s)\n", configPath)

	return nil
}

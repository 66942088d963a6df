package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/batch"
)

// batchConfig lays out a base directory with one run entry and returns
// the run configuration path.
func batchConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()

	writeTestFile(t, filepath.Join(base, "exp1", "rec", batch.DefaultParamName), testParams)
	writeTestFile(t, filepath.Join(base, "configs", "fns.yaml"), testFnConfig)

	return writeTestFile(t, filepath.Join(base, "configs", "run.yaml"),
		"run_list:\n  - param_config: "+filepath.Join(base, "exp1")+"\n    fn_config: fns.yaml\n")
}

func TestBatchCommand_FullBatch(t *testing.T) {
	configPath := batchConfig(t)

	var buf bytes.Buffer

	bc := &BatchCommand{index: -1, noColor: true, out: &buf}

	err := bc.Execute(&cobra.Command{}, configPath)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Batch complete: 1 of 1 iterations succeeded")
	assert.Contains(t, buf.String(), "exp1")

	// The dump lands next to the configuration directory.
	assert.FileExists(t, filepath.Join(filepath.Dir(filepath.Dir(configPath)), "sim_results", "run_dump.gob.lz4"))
}

func TestBatchCommand_MissingConfig(t *testing.T) {
	bc := &BatchCommand{index: -1, noColor: true, out: &bytes.Buffer{}}

	err := bc.Execute(&cobra.Command{}, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

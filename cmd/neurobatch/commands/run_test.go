package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/batch"
)

const testParams = `loader: memory
signals:
  num_channels: 2
  samples_per_channel: 4
`

const testFnConfig = `functions:
  - name: signal_stats
    label: stats
attrs_to_save:
  - results.stats.mean
friendly_names:
  - mean
`

// writeTestFile writes content to path, creating parent directories.
func writeTestFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// testTree builds a discovery root with two memory-backed recordings
// and returns it with a function configuration path.
func testTree(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a", batch.DefaultParamName), testParams)
	writeTestFile(t, filepath.Join(root, "b", batch.DefaultParamName), testParams)

	fnConfig := writeTestFile(t, filepath.Join(t.TempDir(), "fns.yaml"), testFnConfig)

	return root, fnConfig
}

func TestRunCommand_FullPass(t *testing.T) {
	root, fnConfig := testTree(t)

	var buf bytes.Buffer

	rc := &RunCommand{fnConfig: fnConfig, noColor: true, out: &buf}

	err := rc.Execute(&cobra.Command{}, root)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Pass complete: 2 recordings analyzed")
	assert.Contains(t, buf.String(), "MEAN")
	assert.Contains(t, buf.String(), "2.00")

	assert.FileExists(t, filepath.Join(root, "sim_results", "results.csv"))
}

func TestRunCommand_SingleFile(t *testing.T) {
	root, fnConfig := testTree(t)

	var buf bytes.Buffer

	rc := &RunCommand{fnConfig: fnConfig, noColor: true, out: &buf}

	err := rc.Execute(&cobra.Command{}, filepath.Join(root, "a", batch.DefaultParamName))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Pass complete: 1 recordings analyzed")
}

func TestRunCommand_BadFnConfig(t *testing.T) {
	root, _ := testTree(t)

	rc := &RunCommand{
		fnConfig: writeTestFile(t, filepath.Join(t.TempDir(), "fns.yaml"), "functions:\n  - no_such_fn\n"),
		noColor:  true,
		out:      &bytes.Buffer{},
	}

	err := rc.Execute(&cobra.Command{}, root)
	assert.ErrorIs(t, err, batch.ErrBadFnConfig)
}

func TestRunCommand_CheckOnly(t *testing.T) {
	root, fnConfig := testTree(t)

	writeTestFile(t, filepath.Join(root, batch.DefaultBatchName), "params:\n  loader: memory\n")

	rc := &RunCommand{fnConfig: fnConfig, check: true, noColor: true, out: &bytes.Buffer{}}

	err := rc.Execute(&cobra.Command{}, root)
	assert.ErrorIs(t, err, batch.ErrCheckOnly)
}

package batch

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
)

func TestLoadPassOptions_FullFile(t *testing.T) {
	t.Parallel()

	_, fnReg := testRegistries(t)

	path := writeFile(t, filepath.Join(t.TempDir(), "fns.yaml"), `functions:
  - signal_stats
  - name: compare_channels
    label: compare
    timeout: 30s
args_fn: none
attrs_to_save:
  - source_file
  - results.stats.mean
friendly_names:
  - file
  - mean
skip_missing: true
load_all: true
collision: replace
sort:
  by: source_file
  reverse: true
`)

	opts, err := LoadPassOptions(path, fnReg)
	require.NoError(t, err)

	require.Len(t, opts.Functions, 2)
	assert.Equal(t, "signal_stats", opts.Functions[0].Label)
	assert.NotNil(t, opts.Functions[0].Fn)
	assert.Equal(t, "compare", opts.Functions[1].Label)
	assert.Equal(t, 30*time.Second, opts.Functions[1].Timeout)

	assert.NotNil(t, opts.ArgsFn)

	require.Len(t, opts.Columns, 2)
	assert.Equal(t, "results.stats.mean", opts.Columns[1].Path)
	assert.Equal(t, "mean", opts.Columns[1].Header())

	assert.True(t, opts.SkipMissing)
	assert.True(t, opts.LoadAll)
	assert.Equal(t, analysis.CollisionReplace, opts.Collision)
	assert.Equal(t, "source_file", opts.SortBy)
	assert.True(t, opts.SortReverse)

	assert.Equal(t, DefaultParamName, opts.ParamName)
	assert.Equal(t, DefaultBatchName, opts.BatchName)
}

func TestLoadPassOptions_Invalid(t *testing.T) {
	t.Parallel()

	_, fnReg := testRegistries(t)

	tests := map[string]string{
		"unknown function":     "functions:\n  - no_such_fn\n",
		"nameless mapping":     "functions:\n  - label: x\n",
		"bad timeout":          "functions:\n  - name: signal_stats\n    timeout: soon\n",
		"unknown args fn":      "args_fn: nope\n",
		"mismatched friendly":  "attrs_to_save:\n  - a\n  - b\nfriendly_names:\n  - only-one\n",
		"non-string attr":      "attrs_to_save:\n  - 42\n",
		"non-mapping function": "functions:\n  - 42\n",
	}

	for name, content := range tests {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, filepath.Join(t.TempDir(), "fns.yaml"), content)

			_, err := LoadPassOptions(path, fnReg)
			assert.ErrorIs(t, err, ErrBadFnConfig)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	opts := &PassOptions{LoadAll: true}

	applyOverrides(opts, map[string]any{
		"load_all":       false,
		"skip_missing":   true,
		"sort_by":        "source_file",
		"sort_reverse":   true,
		"param_name":     "custom.yaml",
		"keep_container": true,
	})

	assert.False(t, opts.LoadAll)
	assert.True(t, opts.SkipMissing)
	assert.Equal(t, "source_file", opts.SortBy)
	assert.True(t, opts.SortReverse)
	assert.Equal(t, "custom.yaml", opts.ParamName)
	assert.True(t, opts.KeepContainer)
	assert.Equal(t, DefaultBatchName, opts.BatchName)
}

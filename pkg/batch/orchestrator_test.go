package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	loaderReg, fnReg := testRegistries(t)

	return NewOrchestrator(loaderReg, fnReg, quietLogger())
}

func TestOrchestrator_FullPass(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a", "b")

	opts, err := LoadPassOptions(writeFile(t, filepath.Join(t.TempDir(), "fns.yaml"), statsFnConfig), orch.Registry)
	require.NoError(t, err)

	opts.Location = root

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, StateDone, orch.State())

	require.Len(t, result.Results, 2)
	require.Len(t, result.SourceFiles, 2)
	assert.Equal(t, filepath.Join("a", DefaultParamName), mustRel(t, root, result.SourceFiles[0]))
	assert.Equal(t, filepath.Join("b", DefaultParamName), mustRel(t, root, result.SourceFiles[1]))

	// Two channels of ramp data starting at 0 and 1 average to 2.0.
	first := result.Results[0]
	require.Len(t, first, 1)
	assert.Equal(t, "stats", first[0].Key)

	stats, ok := first[0].Value.(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2.0, stats["mean"], 1e-9)

	require.FileExists(t, result.SummaryPath)
	assert.Equal(t, filepath.Join(root, resultsDirName, summaryFileName), result.SummaryPath)

	data, err := os.ReadFile(result.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, "mean\n2.00\n2.00\n", string(data))

	assert.Nil(t, result.Container)
}

func TestOrchestrator_SingleFileLocation(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a", "b")

	opts := &PassOptions{
		Location: filepath.Join(root, "a", DefaultParamName),
		LoadAll:  true,
		Functions: []FnSpec{{
			Label: "stats",
			Name:  analysis.SignalStatsName,
			Fn:    analysis.SignalStats,
		}},
	}

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Empty(t, result.SummaryPath)
}

func TestOrchestrator_InvalidLocation(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)

	_, err := orch.Run(context.Background(), &PassOptions{
		Location: filepath.Join(t.TempDir(), "missing"),
	})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestOrchestrator_ResultsSurviveEviction(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a", "b")

	opts := &PassOptions{
		Location: root,
		LoadAll:  true,
		Functions: []FnSpec{{
			Label: "stats",
			Name:  analysis.SignalStatsName,
			Fn:    analysis.SignalStats,
		}},
		KeepContainer: true,
	}

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, result.Container)

	// Stored elements carry the results even though the hot slot moved
	// on to the next recording.
	for i := 0; i < result.Container.Len(); i++ {
		stored, err := result.Container.At(i)
		require.NoError(t, err)

		_, ok := stored.Results.Get("stats")
		assert.True(t, ok)
		assert.False(t, stored.Loaded())
	}
}

func TestOrchestrator_SortByAttr(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a", "b", "c")

	opts := &PassOptions{
		Location:    root,
		LoadAll:     true,
		SortBy:      "source_file",
		SortReverse: true,
	}

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, result.SourceFiles, 3)
	assert.Equal(t, filepath.Join("c", DefaultParamName), mustRel(t, root, result.SourceFiles[0]))
	assert.Equal(t, filepath.Join("a", DefaultParamName), mustRel(t, root, result.SourceFiles[2]))
}

func TestOrchestrator_ArgsFnOverridesArgs(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a")

	var got []any

	err := orch.Registry.RegisterFn("capture", func(_ context.Context, _ *recording.Recording, args ...any) (any, error) {
		got = args

		return len(args), nil
	})
	require.NoError(t, err)

	fn, err := orch.Registry.Fn("capture")
	require.NoError(t, err)

	opts := &PassOptions{
		Location: root,
		LoadAll:  true,
		Functions: []FnSpec{{
			Label: "capture",
			Name:  "capture",
			Fn:    fn,
			Args:  []any{"static"},
		}},
		ArgsFn: func(rec *recording.Recording) (map[string][]any, error) {
			return map[string][]any{"capture": {rec.SourceFile, 7}}, nil
		},
	}

	_, err = orch.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 7, got[1])
}

func TestOrchestrator_CheckOnly(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)
	root := recordingTree(t, "a")

	writeFile(t, filepath.Join(root, DefaultBatchName), "only_check: true\nparams:\n  loader: memory\n")

	opts := &PassOptions{Location: root, DoBatchSetup: true}

	_, err := orch.Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrCheckOnly)
}

func TestOrchestrator_BatchSetupGeneratesParams(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "session_a"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "session_b"), 0o750))

	writeFile(t, filepath.Join(root, DefaultBatchName), `directories:
  - "session_*"
params:
  loader: memory
`)

	opts := &PassOptions{Location: root, LoadAll: true, DoBatchSetup: true}

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Len(t, result.SourceFiles, 2)
}

func TestOrchestrator_BatchSetupOverwriteClearsStale(t *testing.T) {
	t.Parallel()

	orch := testOrchestrator(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "session_a"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "old"), 0o750))

	// A generated file left behind in a directory the setup no longer
	// targets.
	stale := filepath.Join(root, "old", DefaultParamName)
	writeFile(t, stale, "loader: memory\n_generated: true\n")

	writeFile(t, filepath.Join(root, DefaultBatchName), `overwrite: true
directories:
  - "session_*"
params:
  loader: memory
`)

	opts := &PassOptions{Location: root, LoadAll: true, DoBatchSetup: true}

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Len(t, result.SourceFiles, 1)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "state(42)", State(42).String())
}

// mustRel converts path to be relative to root.
func mustRel(t *testing.T, root, path string) string {
	t.Helper()

	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)

	return rel
}

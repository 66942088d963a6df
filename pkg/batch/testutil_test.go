package batch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/loaders"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// memoryParams is a recording parameter file served by the in-memory
// loader: two channels of four deterministic ramp samples each.
const memoryParams = `loader: memory
signals:
  num_channels: 2
  samples_per_channel: 4
`

// statsFnConfig binds the signal statistics function under the "stats"
// label and exports the overall mean.
const statsFnConfig = `functions:
  - name: signal_stats
    label: stats
attrs_to_save:
  - results.stats.mean
friendly_names:
  - mean
`

// quietLogger drops all output so tests stay silent.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFile writes content to path, creating parent directories.
func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// recordingTree builds a discovery root with one memory-backed
// recording per named subdirectory.
func recordingTree(t *testing.T, names ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, name := range names {
		writeFile(t, filepath.Join(root, name, DefaultParamName), memoryParams)
	}

	return root
}

// testRegistries returns fresh loader and analysis registries with the
// builtins installed.
func testRegistries(t *testing.T) (*loaders.Registry, *analysis.Registry) {
	t.Helper()

	fnReg := analysis.NewRegistry()
	require.NoError(t, analysis.RegisterBuiltins(fnReg))

	return loaders.NewRegistry(), fnReg
}

// countingFn registers an analysis function under name that counts its
// invocations and returns the running total.
func countingFn(t *testing.T, reg *analysis.Registry, name string) *atomic.Int64 {
	t.Helper()

	var calls atomic.Int64

	err := reg.RegisterFn(name, func(_ context.Context, _ *recording.Recording, _ ...any) (any, error) {
		return calls.Add(1), nil
	})
	require.NoError(t, err)

	return &calls
}

package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
)

// errUnknownTestLoader is returned by the test resolver for unknown names.
var errUnknownTestLoader = errors.New("unknown loader")

// countingLoader tracks load invocations and serves fixed data.
type countingLoader struct {
	signalLoads int
}

func (l *countingLoader) LoadSignals(_ context.Context, _ string, _ *params.ParamSet) ([]*Signal, error) {
	l.signalLoads++

	return []*Signal{
		{Name: "ch0", Channel: 0, SamplingRate: 250, Samples: []float64{1, 2, 3}},
		{Name: "ch1", Channel: 1, SamplingRate: 250, Samples: []float64{4, 5, 6}},
	}, nil
}

func (l *countingLoader) LoadUnits(_ context.Context, _ string, _ *params.ParamSet) ([]*Unit, error) {
	return nil, nil
}

func (l *countingLoader) LoadSpatial(_ context.Context, _ string, _ *params.ParamSet) (*Spatial, error) {
	return nil, nil
}

func (l *countingLoader) ResolveFilenames(_ string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

// testResolver resolves "test" to the shared counting loader.
func testResolver(loader *countingLoader) Resolver {
	return func(name string, _ *params.ParamSet) (Loader, error) {
		if name != "test" {
			return nil, fmt.Errorf("%w: %q", errUnknownTestLoader, name)
		}

		return loader, nil
	}
}

// writeParamFile writes a minimal valid recording parameter file.
func writeParamFile(t *testing.T, dir, name string, extra map[string]any) string {
	t.Helper()

	ps := params.New()
	ps.Set("loader", "test")
	ps.Set("signals", map[string]any{"channels": 2})

	for k, v := range extra {
		ps.Set(k, v)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, ps.Write(path))

	return path
}

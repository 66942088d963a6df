package loaders

import (
	"context"
	"fmt"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Defaults for synthetic data generation.
const (
	defaultChannels   = 4
	defaultSamples    = 100
	defaultSampleRate = 250.0
)

// MemoryLoader generates deterministic synthetic data without touching
// the filesystem. Useful for dry runs and pipeline tests.
type MemoryLoader struct {
	channels   int
	samples    int
	sampleRate float64
}

// NewMemoryLoader builds a memory loader from the "signals" mapping keys
// num_channels, samples_per_channel and sampling_rate.
func NewMemoryLoader(ps *params.ParamSet) (recording.Loader, error) {
	loader := &MemoryLoader{
		channels:   defaultChannels,
		samples:    defaultSamples,
		sampleRate: defaultSampleRate,
	}

	v := ps.GetOr(recording.SignalsKey, nil)

	m, ok := v.(map[string]any)
	if !ok {
		return loader, nil
	}

	if n, ok := asInt(m["num_channels"]); ok {
		loader.channels = n
	}

	if n, ok := asInt(m["samples_per_channel"]); ok {
		loader.samples = n
	}

	if rate, ok := asFloat(m["sampling_rate"]); ok {
		loader.sampleRate = rate
	}

	return loader, nil
}

// LoadSignals implements recording.Loader with a deterministic ramp per
// channel: channel c holds samples c, c+1, c+2, ...
func (l *MemoryLoader) LoadSignals(_ context.Context, _ string, _ *params.ParamSet) ([]*recording.Signal, error) {
	signals := make([]*recording.Signal, l.channels)

	for c := 0; c < l.channels; c++ {
		samples := make([]float64, l.samples)
		for i := range samples {
			samples[i] = float64(c + i)
		}

		signals[c] = &recording.Signal{
			Name:         fmt.Sprintf("ch%d", c),
			Channel:      c,
			SamplingRate: l.sampleRate,
			Samples:      samples,
		}
	}

	return signals, nil
}

// LoadUnits implements recording.Loader with a single synthetic unit.
func (l *MemoryLoader) LoadUnits(_ context.Context, _ string, _ *params.ParamSet) ([]*recording.Unit, error) {
	spikes := make([]float64, l.samples/10)
	for i := range spikes {
		spikes[i] = float64(i) / l.sampleRate
	}

	return []*recording.Unit{{Name: "unit0", Cluster: 1, SpikeTimes: spikes}}, nil
}

// LoadSpatial implements recording.Loader with a diagonal synthetic path.
func (l *MemoryLoader) LoadSpatial(_ context.Context, _ string, _ *params.ParamSet) (*recording.Spatial, error) {
	n := l.samples

	spatial := &recording.Spatial{
		Timestamps: make([]float64, n),
		X:          make([]float64, n),
		Y:          make([]float64, n),
	}

	for i := 0; i < n; i++ {
		spatial.Timestamps[i] = float64(i) / l.sampleRate
		spatial.X[i] = float64(i)
		spatial.Y[i] = float64(i)
	}

	return spatial, nil
}

// ResolveFilenames implements recording.Loader; memory recordings have
// no backing files.
func (l *MemoryLoader) ResolveFilenames(_ string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

// asInt coerces the int-ish shapes YAML decoding produces.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// asFloat coerces the float-ish shapes YAML decoding produces.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

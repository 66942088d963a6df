package loaders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Default data file names for the JSON loader, resolved relative to the
// recording's directory.
const (
	defaultSignalsFile = "signals.json"
	defaultUnitsFile   = "units.json"
	defaultSpatialFile = "spatial.json"
)

// fileKey is the per-category parameter key overriding the data file name.
const fileKey = "file"

// ErrBadDataFile indicates a JSON data file that failed to parse.
var ErrBadDataFile = errors.New("malformed data file")

// JSONLoader reads recording data from JSON files next to the parameter
// file. Each category reads its own file, overridable through the
// category mapping's "file" key.
type JSONLoader struct{}

// NewJSONLoader builds the JSON loader. It takes no parameters at
// construction; file names are read per category at load time.
func NewJSONLoader(_ *params.ParamSet) (recording.Loader, error) {
	return &JSONLoader{}, nil
}

// jsonSignal mirrors one signal entry of a signals file.
type jsonSignal struct {
	Name         string    `json:"name"`
	Region       string    `json:"region"`
	Channel      int       `json:"channel"`
	SamplingRate float64   `json:"sampling_rate"`
	Samples      []float64 `json:"samples"`
}

// jsonUnit mirrors one unit entry of a units file.
type jsonUnit struct {
	Name       string    `json:"name"`
	Cluster    int       `json:"cluster"`
	SpikeTimes []float64 `json:"spike_times"`
}

// jsonSpatial mirrors the spatial file.
type jsonSpatial struct {
	Timestamps []float64 `json:"timestamps"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
}

// LoadSignals implements recording.Loader.
func (l *JSONLoader) LoadSignals(_ context.Context, dir string, ps *params.ParamSet) ([]*recording.Signal, error) {
	path := filepath.Join(dir, categoryFile(ps, recording.SignalsKey, defaultSignalsFile))

	var entries []jsonSignal

	err := readJSON(path, &entries)
	if err != nil {
		return nil, err
	}

	signals := make([]*recording.Signal, len(entries))
	for i, e := range entries {
		signals[i] = &recording.Signal{
			Name:         e.Name,
			Region:       e.Region,
			Channel:      e.Channel,
			SamplingRate: e.SamplingRate,
			Samples:      e.Samples,
		}
	}

	return signals, nil
}

// LoadUnits implements recording.Loader.
func (l *JSONLoader) LoadUnits(_ context.Context, dir string, ps *params.ParamSet) ([]*recording.Unit, error) {
	path := filepath.Join(dir, categoryFile(ps, recording.UnitsKey, defaultUnitsFile))

	var entries []jsonUnit

	err := readJSON(path, &entries)
	if err != nil {
		return nil, err
	}

	units := make([]*recording.Unit, len(entries))
	for i, e := range entries {
		units[i] = &recording.Unit{Name: e.Name, Cluster: e.Cluster, SpikeTimes: e.SpikeTimes}
	}

	return units, nil
}

// LoadSpatial implements recording.Loader.
func (l *JSONLoader) LoadSpatial(_ context.Context, dir string, ps *params.ParamSet) (*recording.Spatial, error) {
	path := filepath.Join(dir, categoryFile(ps, recording.SpatialKey, defaultSpatialFile))

	var entry jsonSpatial

	err := readJSON(path, &entry)
	if err != nil {
		return nil, err
	}

	return &recording.Spatial{Timestamps: entry.Timestamps, X: entry.X, Y: entry.Y}, nil
}

// ResolveFilenames implements recording.Loader: it reports which default
// data files exist under base.
func (l *JSONLoader) ResolveFilenames(base string) (map[string][]string, error) {
	out := make(map[string][]string)

	candidates := map[string]string{
		recording.SignalsKey: defaultSignalsFile,
		recording.UnitsKey:   defaultUnitsFile,
		recording.SpatialKey: defaultSpatialFile,
	}

	for category, name := range candidates {
		path := filepath.Join(base, name)

		_, err := os.Stat(path)
		if err == nil {
			out[category] = []string{path}
		}
	}

	return out, nil
}

// categoryFile returns the configured data file name for a category, or
// the default when the category mapping carries no "file" key.
func categoryFile(ps *params.ParamSet, category, def string) string {
	v := ps.GetOr(category, nil)

	m, ok := v.(map[string]any)
	if !ok {
		return def
	}

	name, ok := m[fileKey].(string)
	if !ok || name == "" {
		return def
	}

	return name
}

// readJSON decodes the JSON file at path into out.
func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data file %s: %w", path, err)
	}

	unmarshalErr := json.Unmarshal(data, out)
	if unmarshalErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadDataFile, path, unmarshalErr)
	}

	return nil
}

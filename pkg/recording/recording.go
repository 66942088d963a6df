// Package recording models one analyzable dataset unit: a parameter file,
// lazily loaded signal/spatial/unit data, and accumulated analysis
// results. It also provides the ordered container that discovers and
// serves recordings with a single-slot lazy-load cache.
package recording

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
)

// Sentinel errors for recording construction and loading.
var (
	// ErrLoaderResolution indicates no loader could be resolved from a
	// recording's parameters.
	ErrLoaderResolution = errors.New("no loader resolvable for recording")
	// ErrMissingAttribute indicates a summary attribute absent on a
	// recording with no skip-missing policy configured.
	ErrMissingAttribute = errors.New("missing attribute")
)

// LoaderKey is the parameter key naming the loader discriminator.
const LoaderKey = "loader"

// Parameter keys selecting which data categories a loader populates.
const (
	SignalsKey = "signals"
	UnitsKey   = "units"
	SpatialKey = "spatial"
)

// Signal is one continuously sampled channel of a recording.
type Signal struct {
	Name         string
	Region       string
	Channel      int
	SamplingRate float64
	Samples      []float64
}

// Unit is one sorted single-unit spike train.
type Unit struct {
	Name       string
	Cluster    int
	SpikeTimes []float64
}

// Spatial holds the tracked position data of a recording.
type Spatial struct {
	Timestamps []float64
	X          []float64
	Y          []float64
}

// Loader populates recording data categories from an on-disk source.
// Implementations are selected per recording by the LoaderKey parameter
// and resolved through a host-provided registry.
type Loader interface {
	// LoadSignals loads the signal channels for a recording rooted at dir.
	LoadSignals(ctx context.Context, dir string, ps *params.ParamSet) ([]*Signal, error)
	// LoadUnits loads the single-unit data for a recording rooted at dir.
	LoadUnits(ctx context.Context, dir string, ps *params.ParamSet) ([]*Unit, error)
	// LoadSpatial loads the spatial data for a recording rooted at dir.
	LoadSpatial(ctx context.Context, dir string, ps *params.ParamSet) (*Spatial, error)
	// ResolveFilenames returns the files involved in loading base,
	// keyed by data category.
	ResolveFilenames(base string) (map[string][]string, error)
}

// Resolver turns a loader discriminator and the recording's parameters
// into a Loader implementation.
type Resolver func(name string, ps *params.ParamSet) (Loader, error)

// Recording is one analyzable unit. Its SourceFile never changes after
// construction; data fields are empty until Load runs.
type Recording struct {
	// SourceFile is the absolute path of the recording's parameter file.
	SourceFile string
	// Params is the recording's parameter set.
	Params *params.ParamSet
	// Signals, Units and Spatial are populated by Load.
	Signals []*Signal
	Units   []*Unit
	Spatial *Spatial
	// Results accumulates named analysis outputs for this recording.
	Results *ResultSet

	loaderName string
	loader     Loader
	resolver   Resolver
	loaded     bool
}

// New constructs a recording from its parameter file, resolving the
// configured loader through resolver. The recording stays unloaded. An
// error return means the recording is invalid and must be excluded from
// containers.
func New(paramFile string, resolver Resolver) (*Recording, error) {
	ps := params.New()

	err := ps.Read(paramFile)
	if err != nil {
		return nil, err
	}

	name, err := ps.Get(LoaderKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no %q key", ErrLoaderResolution, paramFile, LoaderKey)
	}

	loaderName, ok := name.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %q is not a string", ErrLoaderResolution, paramFile, LoaderKey)
	}

	loader, err := resolver(loaderName, ps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoaderResolution, paramFile, err)
	}

	return &Recording{
		SourceFile: paramFile,
		Params:     ps,
		Results:    NewResultSet(),
		loaderName: loaderName,
		loader:     loader,
		resolver:   resolver,
	}, nil
}

// LoaderName returns the resolved loader discriminator.
func (r *Recording) LoaderName() string {
	return r.loaderName
}

// Loaded reports whether the recording's data has been materialized.
func (r *Recording) Loaded() bool {
	return r.loaded
}

// Load populates the recording's data through its loader. A second call
// is a no-op; use Reload to force.
func (r *Recording) Load(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	return r.Reload(ctx)
}

// Reload populates the recording's data unconditionally, replacing any
// previously loaded content. Only the categories named in the parameter
// file are loaded.
func (r *Recording) Reload(ctx context.Context) error {
	dir := filepath.Dir(r.SourceFile)

	if r.Params.Has(SignalsKey) {
		signals, err := r.loader.LoadSignals(ctx, dir, r.Params)
		if err != nil {
			return fmt.Errorf("load signals for %s: %w", r.SourceFile, err)
		}

		r.Signals = signals
	}

	if r.Params.Has(UnitsKey) {
		units, err := r.loader.LoadUnits(ctx, dir, r.Params)
		if err != nil {
			return fmt.Errorf("load units for %s: %w", r.SourceFile, err)
		}

		r.Units = units
	}

	if r.Params.Has(SpatialKey) {
		spatial, err := r.loader.LoadSpatial(ctx, dir, r.Params)
		if err != nil {
			return fmt.Errorf("load spatial for %s: %w", r.SourceFile, err)
		}

		r.Spatial = spatial
	}

	r.loaded = true

	return nil
}

// ClearData discards loaded data, returning the recording to the
// unloaded state. Results are untouched.
func (r *Recording) ClearData() {
	r.Signals = nil
	r.Units = nil
	r.Spatial = nil
	r.loaded = false
}

// Copy returns an unloaded deep copy sharing the same identity. Loaded
// data is not carried over; results are cloned.
func (r *Recording) Copy() *Recording {
	return &Recording{
		SourceFile: r.SourceFile,
		Params:     r.Params.Clone(),
		Results:    r.Results.Clone(),
		loaderName: r.loaderName,
		loader:     r.loader,
		resolver:   r.resolver,
	}
}

// NameForSave derives a filesystem-safe identifier for this recording
// from its source file relative to relDir. The same inputs always
// produce the same identifier.
func (r *Recording) NameForSave(relDir string) string {
	rel, err := filepath.Rel(relDir, r.SourceFile)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(r.SourceFile)
	}

	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	return strings.ReplaceAll(rel, string(filepath.Separator), "--")
}

// Attr resolves a dotted attribute path on the recording. Supported
// heads are "source_file", "loader", "num_signals", "results" and
// "params"; nested map values continue the dotted lookup.
func (r *Recording) Attr(path string) (any, bool) {
	head, rest, _ := strings.Cut(path, ".")

	switch head {
	case "source_file":
		return r.SourceFile, rest == ""
	case "loader":
		return r.loaderName, rest == ""
	case "num_signals":
		return len(r.Signals), rest == ""
	case "results":
		if rest == "" {
			return nil, false
		}

		key, nested, _ := strings.Cut(rest, ".")

		v, ok := r.Results.Get(key)
		if !ok {
			return nil, false
		}

		return descend(v, nested)
	case "params":
		if rest == "" {
			return nil, false
		}

		key, nested, _ := strings.Cut(rest, ".")

		v, err := r.Params.Get(key)
		if err != nil {
			return nil, false
		}

		return descend(v, nested)
	default:
		return nil, false
	}
}

// String returns a short description for diagnostics.
func (r *Recording) String() string {
	state := "unloaded"
	if r.loaded {
		state = "loaded"
	}

	return fmt.Sprintf("Recording(%s, loader=%s, %s)", r.SourceFile, r.loaderName, state)
}

// descend walks the remaining dotted path through nested mappings.
func descend(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}

	key, rest, _ := strings.Cut(path, ".")

	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}

	inner, ok := m[key]
	if !ok {
		return nil, false
	}

	return descend(inner, rest)
}

package batch

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/loaders"
	"github.com/synaptiq-labs/neurobatch/pkg/merge"
	"github.com/synaptiq-labs/neurobatch/pkg/persist"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// ErrUnknownAfterBatch indicates an after_batch name with no registered
// callback.
var ErrUnknownAfterBatch = errors.New("unknown after-batch callback")

// dumpSuffix ends every batch cache basename.
const dumpSuffix = "_dump"

func init() {
	// Result values travel through gob inside `any` fields, so every
	// concrete type an analysis function may return needs a name.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]float64{})
	gob.Register([]string{})
	gob.Register("")
	gob.Register(false)
	gob.Register(0)
	gob.Register(int64(0))
	gob.Register(0.0)
}

// IterationError wraps a failure in one batch iteration with its index
// and configuration.
type IterationError struct {
	// Index is the zero-based iteration number.
	Index int
	// ConfigPath is the iteration's discovery location.
	ConfigPath string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *IterationError) Error() string {
	return fmt.Sprintf("batch iteration %d (%s): %v", e.Index, e.ConfigPath, e.Err)
}

// Unwrap returns the underlying failure.
func (e *IterationError) Unwrap() error {
	return e.Err
}

// AggregateEntry is the persisted outcome of one completed iteration.
type AggregateEntry struct {
	// Iteration is the zero-based run_list index.
	Iteration int
	// ConfigPath is the iteration's discovery location.
	ConfigPath string
	// SourceFiles are the analyzed data files, in container order.
	SourceFiles []string
	// Results holds one result snapshot per recording.
	Results [][]recording.ResultItem
}

// Aggregate collects every completed iteration of a batch. This is the
// value written to and restored from the batch cache.
type Aggregate struct {
	Entries []AggregateEntry
}

// AfterBatchFunc runs once after every iteration has finished, with the
// aggregated results and the batch output directory.
type AfterBatchFunc func(ctx context.Context, agg *Aggregate, outDir string) error

// Runner executes every entry of a run configuration, isolating
// per-iteration failures when asked and caching the aggregate so a
// finished batch is not re-run.
type Runner struct {
	// Config is the loaded run configuration.
	Config *Config
	// ConfigPath is the run configuration file the batch was loaded
	// from; relative entry paths resolve against its directory.
	ConfigPath string
	// Orchestrator executes the individual passes.
	Orchestrator *Orchestrator
	// Registry resolves analysis function names for pass options.
	Registry *analysis.Registry
	// Logger receives batch diagnostics; nil means slog.Default.
	Logger *slog.Logger

	// Overwrite forces re-execution even when a cache dump exists.
	Overwrite bool
	// Index restricts the batch to one run_list entry; negative runs
	// all of them. Single-entry runs bypass the cache.
	Index int
	// FnOverride replaces every entry's fn_config when non-empty.
	FnOverride string
	// CheckOnly propagates batch setup verification to every pass.
	CheckOnly bool

	// AfterBatchFuncs maps after_batch names to callbacks.
	AfterBatchFuncs map[string]AfterBatchFunc

	// PassResults keeps full pass results when keep_all_data is set.
	PassResults []*PassResult
}

// NewRunner creates a runner for a loaded configuration.
func NewRunner(config *Config, configPath string, loaderReg *loaders.Registry, fnReg *analysis.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		Config:       config,
		ConfigPath:   configPath,
		Orchestrator: NewOrchestrator(loaderReg, fnReg, logger),
		Registry:     fnReg,
		Logger:       logger,
		Index:        -1,
	}
}

// Run executes the batch. A cached aggregate short-circuits a full run
// unless overwriting is requested. Fresh full runs persist their
// aggregate and merge per-recording outputs. The configured after-batch
// callback receives the aggregate on every completion, restored from
// cache or freshly computed.
func (r *Runner) Run(ctx context.Context) (*Aggregate, error) {
	outDir, err := r.outputDir()
	if err != nil {
		return nil, err
	}

	persister, err := r.persister()
	if err != nil {
		return nil, err
	}

	useCache := r.Index < 0 && !r.CheckOnly

	if useCache && !r.Overwrite && !r.Config.Cache.Overwrite && persister.Exists(outDir) {
		agg, err := r.loadCached(persister, outDir)
		if err != nil {
			return nil, err
		}

		err = r.runAfterBatch(ctx, agg, outDir)
		if err != nil {
			return nil, err
		}

		return agg, nil
	}

	agg := &Aggregate{}

	for i, entry := range r.Config.RunList {
		if r.Index >= 0 && r.Index != i {
			continue
		}

		entryResult, err := r.runIteration(ctx, i, entry)
		if err != nil {
			if errors.Is(err, ErrCheckOnly) {
				return nil, err
			}

			iterErr := &IterationError{Index: i, ConfigPath: entry.ParamConfig, Err: err}

			if !r.Config.HandleErrors {
				return nil, iterErr
			}

			r.Logger.Error("batch: iteration failed, continuing",
				"iteration", i, "config", entry.ParamConfig, "err", err)

			continue
		}

		agg.Entries = append(agg.Entries, *entryResult)
	}

	// Persistence and merge apply to full fresh runs only; the
	// callback also follows single-index runs.
	if useCache {
		err = persister.Save(outDir, agg)
		if err != nil {
			return nil, fmt.Errorf("persist batch aggregate: %w", err)
		}

		r.Logger.Info("batch: aggregate persisted", "path", persister.Path(outDir))

		if r.Config.Merge {
			_, mergeErr := merge.Dir(outDir, r.Logger)
			if mergeErr != nil {
				r.Logger.Warn("batch: merge failed", "err", mergeErr)
			}
		}
	}

	err = r.runAfterBatch(ctx, agg, outDir)
	if err != nil {
		return nil, err
	}

	return agg, nil
}

// runIteration executes one run_list entry as a full pass, recovering
// from panics so a broken analysis function only fails its iteration.
func (r *Runner) runIteration(ctx context.Context, idx int, entry RunEntry) (agg *AggregateEntry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			agg = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	fnConfig := entry.FnConfig
	if r.FnOverride != "" {
		fnConfig = r.FnOverride
	}

	if fnConfig == "" {
		return nil, fmt.Errorf("%w: entry %d", ErrMissingFnConfig, idx)
	}

	opts, err := LoadPassOptions(r.resolvePath(fnConfig), r.Registry)
	if err != nil {
		return nil, err
	}

	applyOverrides(opts, entry.Overrides)

	opts.Location = r.resolvePath(entry.ParamConfig)

	if r.CheckOnly {
		opts.CheckOnly = true
	}

	r.Logger.Info("batch: starting iteration",
		"iteration", idx+1, "total", len(r.Config.RunList), "config", entry.ParamConfig)

	result, err := r.Orchestrator.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	if r.Config.KeepAllData {
		r.PassResults = append(r.PassResults, result)
	}

	return &AggregateEntry{
		Iteration:   idx,
		ConfigPath:  entry.ParamConfig,
		SourceFiles: result.SourceFiles,
		Results:     result.Results,
	}, nil
}

// loadCached restores a previously persisted aggregate.
func (r *Runner) loadCached(persister *persist.Persister[Aggregate], outDir string) (*Aggregate, error) {
	path := persister.Path(outDir)

	size := "unknown size"
	if info, statErr := os.Stat(path); statErr == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	r.Logger.Info("batch: restoring cached results, delete the dump to re-run",
		"path", path, "size", size)

	agg, err := persister.Load(outDir)
	if err != nil {
		return nil, fmt.Errorf("restore batch aggregate %s: %w", path, err)
	}

	return agg, nil
}

// runAfterBatch invokes the configured callback; "save" and the empty
// string mean persistence only.
func (r *Runner) runAfterBatch(ctx context.Context, agg *Aggregate, outDir string) error {
	name := r.Config.AfterBatch
	if name == "" || name == AfterBatchSave {
		return nil
	}

	fn, ok := r.AfterBatchFuncs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAfterBatch, name)
	}

	err := fn(ctx, agg, outDir)
	if err != nil {
		return fmt.Errorf("after-batch %q: %w", name, err)
	}

	return nil
}

// outputDir is the batch output root, a sibling of the run
// configuration's directory.
func (r *Runner) outputDir() (string, error) {
	abs, err := filepath.Abs(r.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("resolve run configuration path: %w", err)
	}

	outDir := filepath.Clean(filepath.Join(filepath.Dir(abs), "..", resultsDirName))

	mkdirErr := os.MkdirAll(outDir, 0o750)
	if mkdirErr != nil {
		return "", fmt.Errorf("create batch output dir: %w", mkdirErr)
	}

	return outDir, nil
}

// persister builds the cache persister: the dump basename derives from
// the run configuration stem plus the function override stem.
func (r *Runner) persister() (*persist.Persister[Aggregate], error) {
	codec, err := codecFor(r.Config.Cache.Codec)
	if err != nil {
		return nil, err
	}

	basename := fileStem(r.ConfigPath)
	if r.FnOverride != "" {
		basename += "--" + fileStem(r.FnOverride)
	}

	return persist.NewPersister[Aggregate](basename+dumpSuffix, codec), nil
}

// resolvePath resolves entry paths against the run configuration's
// directory.
func (r *Runner) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(filepath.Dir(r.ConfigPath), path)
}

// codecFor maps a configured codec name to its implementation.
func codecFor(name string) (persist.Codec, error) {
	switch name {
	case CodecJSON:
		return persist.NewJSONCodec(), nil
	case CodecGob:
		return persist.NewGobCodec(), nil
	case CodecGobLZ4:
		return persist.NewGobLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadCacheCodec, name)
	}
}

// fileStem returns the file name without directory or extension.
func fileStem(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

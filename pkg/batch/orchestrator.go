package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/loaders"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Sentinel errors raised by an orchestrated pass.
var (
	// ErrCheckOnly signals that batch setup ran in verification mode and
	// the pass stopped before analysis.
	ErrCheckOnly = errors.New("batch setup check only, no analysis performed")
	// ErrInvalidLocation indicates a pass location that is neither a
	// directory nor a parameter file.
	ErrInvalidLocation = errors.New("pass location does not exist")
)

// resultsDirName is the per-run output folder under a pass location.
const resultsDirName = "sim_results"

// summaryFileName is the default summary table name.
const summaryFileName = "results.csv"

// State tracks an orchestrated pass through its phases.
type State int

// Pass states, in execution order.
const (
	StateInit State = iota
	StateConfigLoaded
	StateContainerBuilt
	StateIterating
	StateSummaryWritten
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConfigLoaded:
		return "config-loaded"
	case StateContainerBuilt:
		return "container-built"
	case StateIterating:
		return "iterating"
	case StateSummaryWritten:
		return "summary-written"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PassResult is the outcome of one orchestrated pass.
type PassResult struct {
	// Results holds one snapshot per recording, in container order.
	Results [][]recording.ResultItem
	// SourceFiles are the analyzed data files, in container order.
	SourceFiles []string
	// Container is the built container when the pass asked to keep it.
	Container *recording.Container
	// SummaryPath is the written summary table, empty when no columns
	// were requested.
	SummaryPath string
}

// Orchestrator executes one full pass: optional batch setup, container
// discovery, per-recording analysis and summary export.
type Orchestrator struct {
	// Loaders resolves recording loader names.
	Loaders *loaders.Registry
	// Registry resolves analysis function names.
	Registry *analysis.Registry
	// Logger receives pass diagnostics; nil means slog.Default.
	Logger *slog.Logger

	state State
}

// NewOrchestrator creates an orchestrator over the given registries.
func NewOrchestrator(loaderReg *loaders.Registry, fnReg *analysis.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{Loaders: loaderReg, Registry: fnReg, Logger: logger}
}

// State returns the current pass phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes one pass over opts.Location. A directory location is
// discovered recursively; a single parameter file restricts the pass to
// its own directory. Analysis runs per recording in container order and
// each recording keeps a snapshot of its results. Returns ErrCheckOnly
// when batch setup verification stops the pass.
func (o *Orchestrator) Run(ctx context.Context, opts *PassOptions) (*PassResult, error) {
	o.state = StateInit

	opts.applyDefaults()

	root, recursive, err := o.resolveLocation(opts)
	if err != nil {
		return nil, err
	}

	o.state = StateConfigLoaded

	if opts.DoBatchSetup || opts.CheckOnly {
		setupErr := o.runBatchSetup(root, opts)
		if setupErr != nil {
			return nil, setupErr
		}
	}

	container := recording.NewContainer(opts.LoadAll, o.Loaders.Resolve, o.Logger)

	_, err = container.AutoSetup(root, opts.ParamName, recursive)
	if err != nil {
		return nil, err
	}

	o.state = StateContainerBuilt

	if opts.SortBy != "" {
		sortByAttr(container, opts.SortBy, opts.SortReverse)
	}

	o.Logger.Info("pass: container built",
		"root", root, "recordings", container.Len(), "lazy", opts.LoadAll)

	o.state = StateIterating

	result := &PassResult{SourceFiles: container.SourceFiles()}

	handler := analysis.NewHandler(opts.Collision, o.Logger)

	for i := 0; i < container.Len(); i++ {
		snapshot, err := o.runRecording(ctx, container, i, opts, handler)
		if err != nil {
			return nil, err
		}

		result.Results = append(result.Results, snapshot)
	}

	summaryPath, err := o.writeSummary(container, opts)
	if err != nil {
		return nil, err
	}

	result.SummaryPath = summaryPath

	if opts.KeepContainer {
		result.Container = container
	}

	o.state = StateDone

	return result, nil
}

// resolveLocation classifies the pass location. A directory means
// recursive discovery from it; a parameter file means non-recursive
// discovery from its parent, pinned to that file's name.
func (o *Orchestrator) resolveLocation(opts *PassOptions) (string, bool, error) {
	info, err := os.Stat(opts.Location)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrInvalidLocation, opts.Location)
	}

	if info.IsDir() {
		return opts.Location, true, nil
	}

	opts.ParamName = filepath.Base(opts.Location)

	return filepath.Dir(opts.Location), false, nil
}

// runBatchSetup reads the batch setup file at the root and generates
// parameter files before discovery.
func (o *Orchestrator) runBatchSetup(root string, opts *PassOptions) error {
	setup := NewSetup(root, opts.BatchName, o.Logger)

	spec, err := setup.Read()
	if err != nil {
		return err
	}

	if spec.OnlyCheck || opts.CheckOnly {
		o.Logger.Info("pass: batch setup verified", "root", root)

		return ErrCheckOnly
	}

	// Overwrite drops every previously generated file first, so stale
	// files in directories the setup no longer targets do not survive.
	if spec.Overwrite {
		_, clearErr := setup.ClearGenerated(opts.ParamName)
		if clearErr != nil {
			return clearErr
		}
	}

	_, err = setup.WriteParams(spec, opts.ParamName)

	return err
}

// runRecording binds and executes every configured function against the
// recording at idx, then attaches the cloned results to both the served
// recording and the stored element so summaries see them after eviction.
func (o *Orchestrator) runRecording(
	ctx context.Context,
	container *recording.Container,
	idx int,
	opts *PassOptions,
	handler *analysis.Handler,
) ([]recording.ResultItem, error) {
	stored, err := container.At(idx)
	if err != nil {
		return nil, err
	}

	var perRecArgs map[string][]any

	if opts.ArgsFn != nil {
		perRecArgs, err = opts.ArgsFn(stored)
		if err != nil {
			return nil, fmt.Errorf("resolve arguments for %s: %w", stored.SourceFile, err)
		}
	}

	rec, err := container.Get(ctx, idx)
	if err != nil {
		return nil, err
	}

	for _, spec := range opts.Functions {
		args := spec.Args
		if override, ok := perRecArgs[spec.Label]; ok {
			args = override
		}

		handler.Add(analysis.Binding{
			Label:   spec.Label,
			Fn:      spec.Fn,
			Rec:     rec,
			Args:    args,
			Timeout: spec.Timeout,
		})
	}

	err = handler.RunAll(ctx)
	if err != nil {
		handler.Reset()

		return nil, err
	}

	results := handler.Results().Clone()

	rec.Results = results
	stored.Results = results.Clone()

	handler.Reset()

	return stored.Results.Snapshot(), nil
}

// writeSummary exports the requested attribute columns, defaulting to
// <BaseDir>/sim_results/results.csv.
func (o *Orchestrator) writeSummary(container *recording.Container, opts *PassOptions) (string, error) {
	if len(opts.Columns) == 0 {
		o.state = StateSummaryWritten

		return "", nil
	}

	outPath := opts.SummaryPath
	if outPath == "" {
		outPath = filepath.Join(container.BaseDir, resultsDirName, summaryFileName)
	}

	err := container.SaveSummary(outPath, opts.Columns, opts.SkipMissing)
	if err != nil {
		return "", err
	}

	o.state = StateSummaryWritten

	o.Logger.Info("pass: summary written", "path", outPath, "rows", container.Len())

	return outPath, nil
}

// sortByAttr orders the container by an attribute path, comparing the
// rendered values. Recordings missing the attribute sort first.
func sortByAttr(container *recording.Container, path string, reverse bool) {
	container.Sort(func(a, b *recording.Recording) bool {
		av, aok := a.Attr(path)
		bv, bok := b.Attr(path)

		if !aok || !bok {
			return !aok && bok
		}

		return fmt.Sprint(av) < fmt.Sprint(bv)
	}, reverse)
}

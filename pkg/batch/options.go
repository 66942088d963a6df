package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/params"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Default file names for recording and batch parameter files.
const (
	DefaultParamName = "recording_params.yaml"
	DefaultBatchName = "batch_params.yaml"
)

// ErrBadFnConfig indicates a malformed function-binding file.
var ErrBadFnConfig = errors.New("invalid function configuration")

// FnSpec is one analysis function to run per recording, resolved from
// its configured name through the host registry.
type FnSpec struct {
	// Label keys the function's result; defaults to Name.
	Label string
	// Name is the registered function name.
	Name string
	// Fn is the resolved function.
	Fn analysis.Func
	// Args are static positional arguments, overridable per recording
	// by the argument-resolution function.
	Args []any
	// Timeout bounds each call when positive.
	Timeout time.Duration
}

// PassOptions configures one orchestrated pass.
type PassOptions struct {
	// Location is the discovery root directory or a single recording
	// parameter file.
	Location string
	// ParamName is the recording parameter file name to discover.
	ParamName string
	// BatchName is the batch setup parameter file name.
	BatchName string
	// DoBatchSetup runs parameter generation before discovery.
	DoBatchSetup bool
	// CheckOnly verifies batch setup and stops before analysis.
	CheckOnly bool
	// LoadAll serves recordings through the lazy hot slot; off means
	// analysis functions see unloaded recordings.
	LoadAll bool
	// Collision is the result-label collision policy.
	Collision analysis.CollisionPolicy
	// Functions are executed in order for every recording.
	Functions []FnSpec
	// ArgsFn resolves per-recording arguments; may be nil.
	ArgsFn analysis.ArgsFunc
	// Columns are the summary attributes to export.
	Columns []recording.SummaryColumn
	// SkipMissing writes empty cells for absent summary attributes.
	SkipMissing bool
	// SortBy optionally reorders the container by an attribute path.
	SortBy string
	// SortReverse reverses the sort order.
	SortReverse bool
	// SummaryPath overrides the default summary location.
	SummaryPath string
	// KeepContainer returns the container in the pass result.
	KeepContainer bool
}

// applyDefaults fills unset option fields.
func (opts *PassOptions) applyDefaults() {
	if opts.ParamName == "" {
		opts.ParamName = DefaultParamName
	}

	if opts.BatchName == "" {
		opts.BatchName = DefaultBatchName
	}
}

// LoadPassOptions reads a function-binding file and resolves every
// referenced function through reg. File keys: functions, args_fn,
// attrs_to_save, friendly_names, skip_missing, load_all, param_name,
// batch_name, do_batch_setup, collision and sort.
func LoadPassOptions(path string, reg *analysis.Registry) (*PassOptions, error) {
	ps := params.New()

	err := ps.Read(path)
	if err != nil {
		return nil, err
	}

	opts := &PassOptions{LoadAll: true}

	fnList, ok := ps.GetOr("functions", []any{}).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: functions is not a list", ErrBadFnConfig, path)
	}

	for _, raw := range fnList {
		spec, err := parseFnSpec(raw, reg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadFnConfig, path, err)
		}

		opts.Functions = append(opts.Functions, spec)
	}

	if name, ok := ps.GetOr("args_fn", "").(string); ok && name != "" {
		argsFn, err := reg.ArgsFn(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadFnConfig, path, err)
		}

		opts.ArgsFn = argsFn
	}

	columns, err := parseColumns(ps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadFnConfig, path, err)
	}

	opts.Columns = columns

	opts.SkipMissing = asBool(ps.GetOr("skip_missing", false))
	opts.LoadAll = asBool(ps.GetOr("load_all", true))
	opts.DoBatchSetup = asBool(ps.GetOr("do_batch_setup", false))
	opts.ParamName = asString(ps.GetOr("param_name", ""))
	opts.BatchName = asString(ps.GetOr("batch_name", ""))

	if asString(ps.GetOr("collision", "fail")) == "replace" {
		opts.Collision = analysis.CollisionReplace
	}

	if sortSpec, ok := ps.GetOr("sort", nil).(map[string]any); ok {
		opts.SortBy = asString(sortSpec["by"])
		opts.SortReverse = asBool(sortSpec["reverse"])
	}

	opts.applyDefaults()

	return opts, nil
}

// parseFnSpec accepts either a bare function name or a mapping with
// name, label, timeout and args keys.
func parseFnSpec(raw any, reg *analysis.Registry) (FnSpec, error) {
	spec := FnSpec{}

	switch t := raw.(type) {
	case string:
		spec.Name = t
	case map[string]any:
		spec.Name = asString(t["name"])
		spec.Label = asString(t["label"])

		if args, ok := t["args"].([]any); ok {
			spec.Args = args
		}

		if timeout := asString(t["timeout"]); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return spec, fmt.Errorf("bad timeout %q: %w", timeout, err)
			}

			spec.Timeout = d
		}
	default:
		return spec, fmt.Errorf("function entry must be a name or mapping, got %T", raw)
	}

	if spec.Name == "" {
		return spec, errors.New("function entry has no name")
	}

	if spec.Label == "" {
		spec.Label = spec.Name
	}

	fn, err := reg.Fn(spec.Name)
	if err != nil {
		return spec, err
	}

	spec.Fn = fn

	return spec, nil
}

// parseColumns reads attrs_to_save with optional parallel friendly_names.
func parseColumns(ps *params.ParamSet) ([]recording.SummaryColumn, error) {
	attrList, ok := ps.GetOr("attrs_to_save", []any{}).([]any)
	if !ok {
		return nil, errors.New("attrs_to_save is not a list")
	}

	var friendly []any
	if f, ok := ps.GetOr("friendly_names", nil).([]any); ok {
		if len(f) != len(attrList) {
			return nil, errors.New("friendly_names length does not match attrs_to_save")
		}

		friendly = f
	}

	columns := make([]recording.SummaryColumn, 0, len(attrList))

	for i, raw := range attrList {
		path := asString(raw)
		if path == "" {
			return nil, fmt.Errorf("attrs_to_save entry %d is not a string", i)
		}

		col := recording.SummaryColumn{Path: path}
		if friendly != nil {
			col.Name = asString(friendly[i])
		}

		columns = append(columns, col)
	}

	return columns, nil
}

// applyOverrides adjusts pass options from a run entry's override map.
func applyOverrides(opts *PassOptions, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "param_name":
			opts.ParamName = asString(value)
		case "batch_name":
			opts.BatchName = asString(value)
		case "do_batch_setup":
			opts.DoBatchSetup = asBool(value)
		case "load_all":
			opts.LoadAll = asBool(value)
		case "skip_missing":
			opts.SkipMissing = asBool(value)
		case "sort_reverse":
			opts.SortReverse = asBool(value)
		case "sort_by":
			opts.SortBy = asString(value)
		case "keep_container":
			opts.KeepContainer = asBool(value)
		}
	}

	opts.applyDefaults()
}

// asString coerces a configuration value to a string.
func asString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}

	return s
}

// asBool coerces a configuration value to a bool.
func asBool(v any) bool {
	b, ok := v.(bool)
	if !ok {
		return false
	}

	return b
}

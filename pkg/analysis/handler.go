// Package analysis binds analysis functions to recordings and executes
// them in registration order, accumulating a named result set per
// recording.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Sentinel errors for binding and execution.
var (
	// ErrAnalysisFunction wraps a failure raised by an analysis function.
	ErrAnalysisFunction = errors.New("analysis function failed")
	// ErrDuplicateLabel indicates two bindings with one label in a pass
	// under the fail collision policy.
	ErrDuplicateLabel = errors.New("duplicate result label")
)

// Func is an analysis function: it receives the target recording and its
// resolved positional arguments and returns a serializable result.
type Func func(ctx context.Context, rec *recording.Recording, args ...any) (any, error)

// ArgsFunc resolves per-recording positional arguments, keyed by binding
// label. Called once per recording, before binding.
type ArgsFunc func(rec *recording.Recording) (map[string][]any, error)

// CollisionPolicy controls how repeated result labels within one pass
// are handled.
type CollisionPolicy int

const (
	// CollisionFail rejects a second binding with an already-used label.
	CollisionFail CollisionPolicy = iota
	// CollisionReplace lets a later binding overwrite the earlier result.
	CollisionReplace
)

// Binding is one queued (function, recording, arguments) triple.
type Binding struct {
	// Label keys the function's result in the accumulated set.
	Label string
	// Fn is the analysis function to execute.
	Fn Func
	// Rec is the target recording.
	Rec *recording.Recording
	// Args are the positional arguments passed after the recording.
	Args []any
	// Timeout bounds the call when positive; zero means no timeout.
	Timeout time.Duration
}

// Handler queues bindings and executes them in order. Results accumulate
// transiently; Reset clears both the queue and the results without
// touching any recording.
type Handler struct {
	policy  CollisionPolicy
	logger  *slog.Logger
	queue   []Binding
	results *recording.ResultSet
}

// NewHandler creates a handler with the given collision policy.
func NewHandler(policy CollisionPolicy, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		policy:  policy,
		logger:  logger,
		results: recording.NewResultSet(),
	}
}

// AddFn enqueues a binding without executing it.
func (h *Handler) AddFn(label string, fn Func, rec *recording.Recording, args ...any) {
	h.Add(Binding{Label: label, Fn: fn, Rec: rec, Args: args})
}

// Add enqueues a fully specified binding without executing it.
func (h *Handler) Add(b Binding) {
	h.queue = append(h.queue, b)
}

// QueueLen returns the number of pending bindings.
func (h *Handler) QueueLen() int {
	return len(h.queue)
}

// RunAll executes every queued binding in registration order, storing
// each return value under the binding's label. A function error aborts
// execution and surfaces to the caller wrapped in ErrAnalysisFunction;
// results computed before the failure are kept.
func (h *Handler) RunAll(ctx context.Context) error {
	for _, b := range h.queue {
		if h.policy == CollisionFail {
			_, exists := h.results.Get(b.Label)
			if exists {
				return fmt.Errorf("%w: %q", ErrDuplicateLabel, b.Label)
			}
		}

		out, err := h.runOne(ctx, b)
		if err != nil {
			return fmt.Errorf("%w: %q on %s: %v", ErrAnalysisFunction, b.Label, b.Rec.SourceFile, err)
		}

		h.results.Set(b.Label, out)
	}

	return nil
}

// runOne executes a single binding, applying its timeout if set.
func (h *Handler) runOne(ctx context.Context, b Binding) (any, error) {
	callCtx := ctx

	if b.Timeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	started := time.Now()

	out, err := b.Fn(callCtx, b.Rec, b.Args...)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("analysis: function finished",
		"label", b.Label, "elapsed", time.Since(started).Round(time.Microsecond))

	return out, nil
}

// Results returns the live accumulated result set. Callers that attach
// results to a recording must clone it before Reset.
func (h *Handler) Results() *recording.ResultSet {
	return h.results
}

// Reset clears the queue and the accumulated results.
func (h *Handler) Reset() {
	h.queue = nil
	h.results = recording.NewResultSet()
}

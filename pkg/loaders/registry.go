// Package loaders provides the host registry of recording loaders and
// the built-in implementations. Loaders are selected per recording by
// the "loader" discriminator in its parameter file.
package loaders

import (
	"errors"
	"fmt"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Sentinel errors for loader resolution.
var (
	// ErrUnknownLoader indicates a discriminator with no registered factory.
	ErrUnknownLoader = errors.New("unknown loader")
	// ErrDuplicateLoader indicates a factory registered twice under one name.
	ErrDuplicateLoader = errors.New("loader already registered")
)

// Built-in loader discriminators.
const (
	// JSONLoaderName selects the JSON file-backed loader.
	JSONLoaderName = "json"
	// MemoryLoaderName selects the synthetic in-memory loader.
	MemoryLoaderName = "memory"
)

// Factory builds a loader from a recording's parameters.
type Factory func(ps *params.ParamSet) (recording.Loader, error)

// Registry maps loader discriminators to factories. It is the host-side
// resolution point for configuration-driven loader selection.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry creates a registry with the built-in loaders registered.
func NewRegistry() *Registry {
	reg := &Registry{factories: make(map[string]Factory)}

	// Built-ins cannot collide in a fresh registry.
	_ = reg.Register(JSONLoaderName, NewJSONLoader)
	_ = reg.Register(MemoryLoaderName, NewMemoryLoader)

	return reg
}

// Register adds a factory under name. Registering a name twice fails.
func (reg *Registry) Register(name string, factory Factory) error {
	_, exists := reg.factories[name]
	if exists {
		return fmt.Errorf("%w: %q", ErrDuplicateLoader, name)
	}

	reg.factories[name] = factory
	reg.order = append(reg.order, name)

	return nil
}

// Names returns the registered discriminators in registration order.
func (reg *Registry) Names() []string {
	out := make([]string, len(reg.order))
	copy(out, reg.order)

	return out
}

// Resolve builds the loader registered under name for the given
// parameters. Satisfies recording.Resolver.
func (reg *Registry) Resolve(name string, ps *params.ParamSet) (recording.Loader, error) {
	factory, ok := reg.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoader, name)
	}

	loader, err := factory(ps)
	if err != nil {
		return nil, fmt.Errorf("build loader %q: %w", name, err)
	}

	return loader, nil
}

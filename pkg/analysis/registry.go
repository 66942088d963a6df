package analysis

import (
	"errors"
	"fmt"
)

// Sentinel errors for name resolution.
var (
	// ErrUnknownFunction indicates a function name with no registration.
	ErrUnknownFunction = errors.New("unknown analysis function")
	// ErrUnknownArgsFunc indicates an argument-resolution name with no
	// registration.
	ErrUnknownArgsFunc = errors.New("unknown argument-resolution function")
	// ErrDuplicateRegistration indicates a name registered twice.
	ErrDuplicateRegistration = errors.New("name already registered")
)

// Registry resolves configuration-supplied names to host functions.
// Configuration files reference analysis and argument-resolution
// functions by name only; no code is ever executed from configuration.
type Registry struct {
	fns     map[string]Func
	argsFns map[string]ArgsFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns:     make(map[string]Func),
		argsFns: make(map[string]ArgsFunc),
	}
}

// RegisterFn adds an analysis function under name.
func (reg *Registry) RegisterFn(name string, fn Func) error {
	_, exists := reg.fns[name]
	if exists {
		return fmt.Errorf("%w: function %q", ErrDuplicateRegistration, name)
	}

	reg.fns[name] = fn

	return nil
}

// Fn resolves an analysis function by name.
func (reg *Registry) Fn(name string) (Func, error) {
	fn, ok := reg.fns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}

	return fn, nil
}

// RegisterArgsFn adds an argument-resolution function under name.
func (reg *Registry) RegisterArgsFn(name string, fn ArgsFunc) error {
	_, exists := reg.argsFns[name]
	if exists {
		return fmt.Errorf("%w: args function %q", ErrDuplicateRegistration, name)
	}

	reg.argsFns[name] = fn

	return nil
}

// ArgsFn resolves an argument-resolution function by name.
func (reg *Registry) ArgsFn(name string) (ArgsFunc, error) {
	fn, ok := reg.argsFns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArgsFunc, name)
	}

	return fn, nil
}

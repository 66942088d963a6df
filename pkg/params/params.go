// Package params provides ordered, typed key/value parameter sets with
// YAML round-trip support. A ParamSet is the configuration unit attached
// to every recording and batch run.
package params

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for parameter handling.
var (
	// ErrParse indicates a malformed parameter file or one that does not
	// produce a mapping.
	ErrParse = errors.New("parameter file parse failed")
	// ErrKeyNotFound indicates an absent key with no default supplied.
	ErrKeyNotFound = errors.New("parameter key not found")
)

// File permissions for written parameter files.
const filePerm = 0o644

// ParamSet is an ordered mapping from string keys to structured values.
// Keys supplied as non-string scalars are coerced to their string form,
// so a round-trip never preserves key types, only key text.
type ParamSet struct {
	order  []string
	values map[string]any
}

// New creates an empty ParamSet.
func New() *ParamSet {
	return &ParamSet{values: make(map[string]any)}
}

// FromPairs creates a ParamSet from key/value pairs, preserving the given
// order. Keys repeat-set keep their first position.
func FromPairs(pairs ...Pair) *ParamSet {
	ps := New()

	for _, p := range pairs {
		ps.Set(p.Key, p.Value)
	}

	return ps
}

// Pair is a single key/value entry used for ordered construction.
type Pair struct {
	Key   any
	Value any
}

// CoerceKey converts an arbitrary scalar key to its string form.
func CoerceKey(key any) string {
	if s, ok := key.(string); ok {
		return s
	}

	return fmt.Sprint(key)
}

// Set stores a value under the coerced string form of key. Setting an
// existing key replaces its value without moving it.
func (ps *ParamSet) Set(key, value any) {
	k := CoerceKey(key)

	_, exists := ps.values[k]
	if !exists {
		ps.order = append(ps.order, k)
	}

	ps.values[k] = value
}

// Get returns the value for key, or ErrKeyNotFound if absent.
func (ps *ParamSet) Get(key string) (any, error) {
	v, ok := ps.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	return v, nil
}

// GetOr returns the value for key, or def if the key is absent.
func (ps *ParamSet) GetOr(key string, def any) any {
	v, ok := ps.values[key]
	if !ok {
		return def
	}

	return v
}

// Has reports whether key is present.
func (ps *ParamSet) Has(key string) bool {
	_, ok := ps.values[key]

	return ok
}

// Delete removes key if present.
func (ps *ParamSet) Delete(key string) {
	_, ok := ps.values[key]
	if !ok {
		return
	}

	delete(ps.values, key)

	for i, k := range ps.order {
		if k == key {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)

			break
		}
	}
}

// Keys returns the keys in insertion order.
func (ps *ParamSet) Keys() []string {
	out := make([]string, len(ps.order))
	copy(out, ps.order)

	return out
}

// Len returns the number of keys.
func (ps *ParamSet) Len() int {
	return len(ps.order)
}

// Clone returns a deep copy of the set.
func (ps *ParamSet) Clone() *ParamSet {
	out := New()

	for _, k := range ps.order {
		out.Set(k, cloneValue(ps.values[k]))
	}

	return out
}

// Read parses the YAML parameter file at path into the set, replacing any
// existing content. Reading the same file twice yields an identical set.
func (ps *ParamSet) Read(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read parameter file %s: %w", path, err)
	}

	var root yaml.Node

	unmarshalErr := yaml.Unmarshal(data, &root)
	if unmarshalErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, path, unmarshalErr)
	}

	mapping, err := documentMapping(&root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	ps.order = nil
	ps.values = make(map[string]any)

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := mapping.Content[i]
		valueNode := mapping.Content[i+1]

		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: %s: non-scalar mapping key", ErrParse, path)
		}

		var value any

		decodeErr := valueNode.Decode(&value)
		if decodeErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, path, decodeErr)
		}

		ps.Set(keyNode.Value, value)
	}

	return nil
}

// Write serializes the set to a YAML file at path that, when re-read,
// reproduces an equivalent set. Parent directories are created.
func (ps *ParamSet) Write(path string) error {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, k := range ps.order {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}

		valueNode := &yaml.Node{}

		err := valueNode.Encode(ps.values[k])
		if err != nil {
			return fmt.Errorf("encode parameter %q: %w", k, err)
		}

		node.Content = append(node.Content, keyNode, valueNode)
	}

	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	mkdirErr := os.MkdirAll(filepath.Dir(path), 0o750)
	if mkdirErr != nil {
		return fmt.Errorf("create parameter dir: %w", mkdirErr)
	}

	writeErr := os.WriteFile(path, data, filePerm)
	if writeErr != nil {
		return fmt.Errorf("write parameter file %s: %w", path, writeErr)
	}

	return nil
}

// String returns a compact key listing for diagnostics.
func (ps *ParamSet) String() string {
	return fmt.Sprintf("ParamSet(%d keys: %s)", len(ps.order), strings.Join(ps.order, ", "))
}

// documentMapping unwraps a parsed document down to its mapping node.
func documentMapping(root *yaml.Node) (*yaml.Node, error) {
	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) != 1 {
			return nil, errors.New("document is not a single mapping")
		}

		node = node.Content[0]
	}

	if node.Kind != yaml.MappingNode {
		return nil, errors.New("top level is not a mapping")
	}

	return node, nil
}

// cloneValue deep-copies the structured value shapes YAML produces.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}

		return out
	default:
		return v
	}
}

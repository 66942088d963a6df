package persist

import (
	"os"
	"path/filepath"
)

// Persister handles dump I/O for one aggregate state type under a fixed
// basename, using a Codec for the on-disk format.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the dump file path inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Exists reports whether a dump is present in dir.
func (p *Persister[T]) Exists(dir string) bool {
	_, err := os.Stat(p.Path(dir))

	return err == nil
}

// Save writes state to its dump file inside dir.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.basename, p.codec, state)
}

// Load restores state from the dump file inside dir.
func (p *Persister[T]) Load(dir string) (*T, error) {
	var state T

	err := LoadState(dir, p.basename, p.codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Remove deletes the dump file inside dir if present.
func (p *Persister[T]) Remove(dir string) error {
	err := os.Remove(p.Path(dir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

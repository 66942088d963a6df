package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Sentinel errors for container discovery and access.
var (
	// ErrInvalidRoot indicates a discovery root that is not a directory.
	ErrInvalidRoot = errors.New("discovery root is not a directory")
	// ErrIndexOutOfRange indicates an index outside the container.
	ErrIndexOutOfRange = errors.New("recording index out of range")
)

// noHotIndex marks an empty hot slot.
const noHotIndex = -1

// Container is an ordered sequence of recordings discovered under a base
// directory. With lazy loading enabled it keeps at most one recording
// materialized at a time: the hot slot, a capacity-1 cache owned by the
// container. Eviction replaces the hot copy and never touches the
// authoritative sequence.
type Container struct {
	// BaseDir is the discovery root recorded by AutoSetup.
	BaseDir string
	// Lazy enables the single-slot load-on-demand cache.
	Lazy bool

	resolver Resolver
	logger   *slog.Logger

	elements []*Recording
	hot      *Recording
	hotIdx   int
}

// NewContainer creates an empty container. With lazy true, Get serves
// deep-copied, freshly loaded recordings through the hot slot; with lazy
// false, Get returns stored elements directly.
func NewContainer(lazy bool, resolver Resolver, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}

	return &Container{
		Lazy:     lazy,
		resolver: resolver,
		logger:   logger,
		hotIdx:   noHotIndex,
	}
}

// AutoSetup discovers parameter files named paramName under root and
// builds one recording per match, in stable lexical order. Invalid
// recordings are skipped with a diagnostic. Duplicate source files are
// ignored. Returns the parameter files that produced recordings.
func (c *Container) AutoSetup(root, paramName string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve discovery root %s: %w", root, err)
	}

	paramFiles, err := findParamFiles(absRoot, paramName, recursive)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	added := make([]string, 0, len(paramFiles))

	for i, paramFile := range paramFiles {
		if seen[paramFile] {
			continue
		}

		seen[paramFile] = true

		c.logger.Info("container: parsing recording",
			"index", i+1, "total", len(paramFiles), "file", paramFile)

		rec, err := New(paramFile, c.resolver)
		if err != nil {
			c.logger.Warn("container: skipping invalid recording",
				"file", paramFile, "err", err)

			continue
		}

		c.elements = append(c.elements, rec)
		added = append(added, paramFile)
	}

	c.BaseDir = absRoot

	return added, nil
}

// Len returns the number of recordings.
func (c *Container) Len() int {
	return len(c.elements)
}

// At returns the stored element at idx without any loading.
func (c *Container) At(idx int) (*Recording, error) {
	if idx < 0 || idx >= len(c.elements) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(c.elements))
	}

	return c.elements[idx], nil
}

// Get serves the recording at idx. In lazy mode the previous hot copy is
// evicted first, then a deep copy of the element is loaded and cached;
// asking for the cached index again returns the hot copy without a
// reload. In non-lazy mode the stored element is returned as-is.
func (c *Container) Get(ctx context.Context, idx int) (*Recording, error) {
	if idx < 0 || idx >= len(c.elements) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(c.elements))
	}

	if !c.Lazy {
		return c.elements[idx], nil
	}

	if c.hotIdx == idx {
		return c.hot, nil
	}

	// Evict before loading: the hot slot never holds two loaded
	// recordings, even transiently.
	c.hot = nil
	c.hotIdx = noHotIndex

	cp := c.elements[idx].Copy()

	err := cp.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.hot = cp
	c.hotIdx = idx

	return cp, nil
}

// Evict clears the hot slot without touching the stored sequence.
func (c *Container) Evict() {
	c.hot = nil
	c.hotIdx = noHotIndex
}

// Sort reorders the sequence in place with a stable sort. The hot slot
// is evicted because indices shift.
func (c *Container) Sort(less func(a, b *Recording) bool, reverse bool) {
	c.Evict()

	sort.SliceStable(c.elements, func(i, j int) bool {
		if reverse {
			return less(c.elements[j], c.elements[i])
		}

		return less(c.elements[i], c.elements[j])
	})
}

// SourceFiles returns every element's source file in container order.
func (c *Container) SourceFiles() []string {
	out := make([]string, len(c.elements))

	for i, rec := range c.elements {
		out[i] = rec.SourceFile
	}

	return out
}

// String returns a short description for diagnostics.
func (c *Container) String() string {
	return fmt.Sprintf("Container(%d recordings from %s)", len(c.elements), c.BaseDir)
}

// findParamFiles collects files named paramName under root in lexical
// walk order. Non-recursive discovery only inspects root itself.
func findParamFiles(root, paramName string, recursive bool) ([]string, error) {
	var out []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read discovery root %s: %w", root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() && entry.Name() == paramName {
				out = append(out, filepath.Join(root, entry.Name()))
			}
		}

		return out, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && d.Name() == paramName {
			out = append(out, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan discovery root %s: %w", root, err)
	}

	return out, nil
}

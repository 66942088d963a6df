package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/synaptiq-labs/neurobatch/pkg/params"
)

// GeneratedKey marks parameter files written by batch setup so later
// runs can tell them apart from hand-written ones.
const GeneratedKey = "_generated"

// ErrBadBatchSpec indicates a malformed batch setup file.
var ErrBadBatchSpec = errors.New("invalid batch setup file")

// SetupSpec describes a parameter-generation pass read from a batch
// setup file.
type SetupSpec struct {
	// OnlyCheck verifies the setup without writing parameter files.
	OnlyCheck bool
	// Overwrite replaces existing parameter files.
	Overwrite bool
	// Directories are glob patterns, relative to the setup root,
	// selecting the target directories. Empty means every directory
	// under the root.
	Directories []string
	// Template holds the parameters to write into each target.
	Template *params.ParamSet
}

// Setup generates recording parameter files across a directory tree
// from a single batch setup file at its root.
type Setup struct {
	// Root is the directory holding the batch setup file.
	Root string
	// BatchName is the setup file name inside Root.
	BatchName string

	logger *slog.Logger
}

// NewSetup returns a Setup for the batch file Root/BatchName.
func NewSetup(root, batchName string, logger *slog.Logger) *Setup {
	if logger == nil {
		logger = slog.Default()
	}

	if batchName == "" {
		batchName = DefaultBatchName
	}

	return &Setup{Root: root, BatchName: batchName, logger: logger}
}

// Read parses the batch setup file. Recognized keys: only_check,
// overwrite, directories and params (the template mapping).
func (s *Setup) Read() (*SetupSpec, error) {
	path := filepath.Join(s.Root, s.BatchName)

	ps := params.New()

	err := ps.Read(path)
	if err != nil {
		return nil, err
	}

	spec := &SetupSpec{
		OnlyCheck: asBool(ps.GetOr("only_check", false)),
		Overwrite: asBool(ps.GetOr("overwrite", false)),
		Template:  params.New(),
	}

	if dirs, ok := ps.GetOr("directories", nil).([]any); ok {
		for i, raw := range dirs {
			pattern := asString(raw)
			if pattern == "" {
				return nil, fmt.Errorf("%w: %s: directories entry %d is not a string", ErrBadBatchSpec, path, i)
			}

			spec.Directories = append(spec.Directories, pattern)
		}
	}

	template, ok := ps.GetOr("params", nil).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing params mapping", ErrBadBatchSpec, path)
	}

	keys := make([]string, 0, len(template))
	for key := range template {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		spec.Template.Set(key, template[key])
	}

	return spec, nil
}

// WriteParams writes the template as paramName into every target
// directory. Existing files are kept unless the spec says overwrite;
// files written here carry a generated marker. Returns the paths
// written.
func (s *Setup) WriteParams(spec *SetupSpec, paramName string) ([]string, error) {
	if paramName == "" {
		paramName = DefaultParamName
	}

	dirs, err := s.targetDirs(spec)
	if err != nil {
		return nil, err
	}

	var written []string

	for _, dir := range dirs {
		target := filepath.Join(dir, paramName)

		_, statErr := os.Stat(target)
		if statErr == nil && !spec.Overwrite {
			s.logger.Debug("batch setup: keeping existing parameter file", "path", target)

			continue
		}

		out := spec.Template.Clone()
		out.Set(GeneratedKey, true)

		writeErr := out.Write(target)
		if writeErr != nil {
			return written, fmt.Errorf("write generated parameters %s: %w", target, writeErr)
		}

		written = append(written, target)
	}

	s.logger.Info("batch setup: parameter files written", "root", s.Root, "count", len(written))

	return written, nil
}

// ClearGenerated removes every paramName file under the root that
// carries the generated marker. Hand-written files are left alone.
// Returns the paths removed.
func (s *Setup) ClearGenerated(paramName string) ([]string, error) {
	if paramName == "" {
		paramName = DefaultParamName
	}

	var removed []string

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() != paramName {
			return nil
		}

		ps := params.New()

		readErr := ps.Read(path)
		if readErr != nil {
			return nil
		}

		if !asBool(ps.GetOr(GeneratedKey, false)) {
			return nil
		}

		removeErr := os.Remove(path)
		if removeErr != nil {
			return removeErr
		}

		removed = append(removed, path)

		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("clear generated parameters under %s: %w", s.Root, err)
	}

	return removed, nil
}

// targetDirs resolves the spec's directory globs, or every directory
// under the root when no globs are given.
func (s *Setup) targetDirs(spec *SetupSpec) ([]string, error) {
	if len(spec.Directories) == 0 {
		return s.allDirs()
	}

	seen := make(map[string]bool)

	var dirs []string

	for _, pattern := range spec.Directories {
		matches, err := filepath.Glob(filepath.Join(s.Root, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: bad directory glob %q: %v", ErrBadBatchSpec, pattern, err)
		}

		for _, match := range matches {
			info, statErr := os.Stat(match)
			if statErr != nil || !info.IsDir() || seen[match] {
				continue
			}

			seen[match] = true

			dirs = append(dirs, match)
		}
	}

	sort.Strings(dirs)

	return dirs, nil
}

// allDirs lists every directory under the root, root included.
func (s *Setup) allDirs() ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			dirs = append(dirs, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan setup root %s: %w", s.Root, err)
	}

	sort.Strings(dirs)

	return dirs, nil
}

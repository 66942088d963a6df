// Package merge consolidates the per-recording CSV outputs produced
// during a batch into combined tables under the results directory.
package merge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotADirectory indicates a merge target that is not a directory.
var ErrNotADirectory = errors.New("merge target is not a directory")

// MergedDirName is the folder combined tables are written into.
const MergedDirName = "merged"

// sourceColumn is the header of the provenance column prepended to every
// merged row.
const sourceColumn = "source"

// Dir merges every CSV under resultsDir into per-component combined
// tables in <resultsDir>/merged. Files are grouped by the component
// subdirectory they live in; files directly under resultsDir form the
// "results" group. Each merged row is prefixed with the stem of the file
// it came from. Files whose header disagrees with their group's first
// file are skipped with a diagnostic. Returns the written table paths.
func Dir(resultsDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(resultsDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, resultsDir)
	}

	groups, err := collectGroups(resultsDir)
	if err != nil {
		return nil, err
	}

	mergedDir := filepath.Join(resultsDir, MergedDirName)

	mkdirErr := os.MkdirAll(mergedDir, 0o750)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create merged dir: %w", mkdirErr)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	sort.Strings(names)

	var written []string

	for _, name := range names {
		outPath := filepath.Join(mergedDir, name+"_all.csv")

		err = mergeGroup(outPath, groups[name], logger)
		if err != nil {
			return nil, err
		}

		logger.Info("merge: combined table written", "component", name, "files", len(groups[name]), "out", outPath)

		written = append(written, outPath)
	}

	return written, nil
}

// collectGroups walks resultsDir and groups CSV paths by component name,
// skipping previously merged output.
func collectGroups(resultsDir string) (map[string][]string, error) {
	groups := make(map[string][]string)

	err := filepath.WalkDir(resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == MergedDirName {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}

		rel, relErr := filepath.Rel(resultsDir, path)
		if relErr != nil {
			return relErr
		}

		component := "results"
		if dir := filepath.Dir(rel); dir != "." {
			// Group by the top-level component folder.
			component = strings.Split(dir, string(filepath.Separator))[0]
		}

		groups[component] = append(groups[component], path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan results dir %s: %w", resultsDir, err)
	}

	for _, paths := range groups {
		sort.Strings(paths)
	}

	return groups, nil
}

// mergeGroup writes one combined table from the group's files.
func mergeGroup(outPath string, paths []string, logger *slog.Logger) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create merged file: %w", err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)

	var header []string

	for _, path := range paths {
		rows, err := readCSV(path)
		if err != nil {
			logger.Warn("merge: skipping unreadable file", "file", path, "err", err)

			continue
		}

		if len(rows) == 0 {
			continue
		}

		if header == nil {
			header = rows[0]

			writeErr := writer.Write(append([]string{sourceColumn}, header...))
			if writeErr != nil {
				return fmt.Errorf("write merged header: %w", writeErr)
			}
		} else if !equalRows(header, rows[0]) {
			logger.Warn("merge: skipping file with mismatched header", "file", path)

			continue
		}

		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		for _, row := range rows[1:] {
			writeErr := writer.Write(append([]string{stem}, row...))
			if writeErr != nil {
				return fmt.Errorf("write merged row: %w", writeErr)
			}
		}
	}

	writer.Flush()

	flushErr := writer.Error()
	if flushErr != nil {
		return fmt.Errorf("flush merged file: %w", flushErr)
	}

	return nil
}

// readCSV reads all rows of a CSV file, tolerating ragged rows.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	return reader.ReadAll()
}

// equalRows compares two string rows for equality.
func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

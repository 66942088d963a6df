package recording

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// floatFormat is the fixed-precision format for numeric summary cells,
// matching the comparison-matrix writer's convention.
const floatFormat = "%.2f"

// SummaryColumn names one attribute to export: a dotted path into the
// recording plus an optional friendly header name.
type SummaryColumn struct {
	// Path is the dotted attribute path, e.g. "results.score".
	Path string
	// Name replaces Path in the header row when non-empty.
	Name string
}

// Header returns the header cell for the column.
func (sc SummaryColumn) Header() string {
	if sc.Name != "" {
		return sc.Name
	}

	return sc.Path
}

// SaveSummary writes one row per recording to a CSV file at outPath,
// extracting the named attributes from every element. Floats are written
// with two decimals. A missing attribute fails with ErrMissingAttribute
// unless skipMissing is set, in which case the cell is left empty.
func (c *Container) SaveSummary(outPath string, cols []SummaryColumn, skipMissing bool) error {
	rows, err := c.summaryRows(cols, skipMissing)
	if err != nil {
		return err
	}

	mkdirErr := os.MkdirAll(filepath.Dir(outPath), 0o750)
	if mkdirErr != nil {
		return fmt.Errorf("create summary dir: %w", mkdirErr)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Header()
	}

	writeErr := writer.Write(header)
	if writeErr != nil {
		return fmt.Errorf("write summary header: %w", writeErr)
	}

	for _, row := range rows {
		writeErr = writer.Write(row)
		if writeErr != nil {
			return fmt.Errorf("write summary row: %w", writeErr)
		}
	}

	writer.Flush()

	flushErr := writer.Error()
	if flushErr != nil {
		return fmt.Errorf("flush summary file: %w", flushErr)
	}

	return nil
}

// summaryRows extracts and formats the requested attributes for every
// element in container order.
func (c *Container) summaryRows(cols []SummaryColumn, skipMissing bool) ([][]string, error) {
	rows := make([][]string, 0, len(c.elements))

	for _, rec := range c.elements {
		row := make([]string, len(cols))

		for i, col := range cols {
			v, ok := rec.Attr(col.Path)
			if !ok {
				if !skipMissing {
					return nil, fmt.Errorf("%w: %q on %s", ErrMissingAttribute, col.Path, rec.SourceFile)
				}

				row[i] = ""

				continue
			}

			row[i] = formatCell(v)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// formatCell renders one summary value: fixed-precision floats, plain
// integers and strings, fmt rendering for everything else.
func formatCell(v any) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf(floatFormat, t)
	case float32:
		return fmt.Sprintf(floatFormat, t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

package recording

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary writes the summary as a human-readable table to w, with
// the same columns, ordering and cell formatting as SaveSummary.
func (c *Container) RenderSummary(w io.Writer, cols []SummaryColumn, skipMissing bool) error {
	rows, err := c.summaryRows(cols, skipMissing)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col.Header()
	}

	tw.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}

		tw.AppendRow(tr)
	}

	tw.Render()

	return nil
}

package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter outputs rows as an aligned text table
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders rows as a table with the given column order as header.
func (t *TableFormatter) Format(columns []string, rows []map[string]any) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		table.Append(record)
	}

	table.Render()
	return nil
}

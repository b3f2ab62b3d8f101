// Package output provides formatters for presenting dataset rows.
//
// Supported formats:
//   - JSON Lines: one JSON object per row
//   - CSV: header row in schema order, one record per row
//   - Table: aligned text table for terminals
//
// Formatters take the column order explicitly so output follows the dataset
// schema rather than map iteration order.
//
// Example usage:
//
//	formatter := output.NewCSVFormatter(os.Stdout)
//	if err := formatter.Format(meta.ColumnNames(), rows); err != nil {
//	    log.Fatal(err)
//	}
package output

import "io"

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes rows in the formatter's specific format, emitting
	// columns in the given order
	Format(columns []string, rows []map[string]any) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter for a format name, or false for an unknown name.
func New(format string, w io.Writer) (Formatter, bool) {
	switch format {
	case "json", "jsonl":
		return NewJSONFormatter(w), true
	case "csv":
		return NewCSVFormatter(w), true
	case "table":
		return NewTableFormatter(w), true
	}
	return nil, false
}

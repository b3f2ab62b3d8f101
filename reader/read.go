package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	segjson "github.com/segmentio/encoding/json"

	"github.com/defineEditor/go-dataset-json/metadata"
)

// Predicate is the opaque row-acceptance test supplied by a caller. The
// reader hands it every scanned row as a name-keyed record covering all
// columns and never inspects it beyond the boolean result.
type Predicate interface {
	Matches(row map[string]any) bool
}

// ReadOptions bounds one cursor-based read.
type ReadOptions struct {
	// Start is the row index to read from, in [0, records].
	Start int64
	// Length caps the number of returned rows; 0 reads to end of stream.
	Length int
	// Columns restricts the returned cells to the named columns,
	// matched case-insensitively. Empty means all columns.
	Columns []string
	// Where filters scanned rows. The cursor advances past every scanned
	// row; only matches count toward Length and appear in the result.
	Where Predicate
}

// ReadRows reads rows in positional (array) form, continuing from the
// session cursor when the requested start lies ahead of it and restarting
// the stream otherwise. The cursor afterwards reflects the number of rows
// scanned, which with a predicate can exceed the number returned.
func (d *Dataset) ReadRows(opts ReadOptions) ([][]any, error) {
	meta, rows, err := d.scan(opts)
	if err != nil {
		return nil, err
	}
	idx := columnIndices(meta, opts.Columns)
	if idx == nil {
		return rows, nil
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, 0, len(idx))
		for _, j := range idx {
			if j < len(row) {
				cells = append(cells, row[j])
			} else {
				cells = append(cells, nil)
			}
		}
		out[i] = cells
	}
	return out, nil
}

// ReadRecords reads rows in name-keyed (object) form, zipping the column
// schema with each row's cells. The column filter retains only matching
// columns; cursor semantics are identical to ReadRows.
func (d *Dataset) ReadRecords(opts ReadOptions) ([]map[string]any, error) {
	meta, rows, err := d.scan(opts)
	if err != nil {
		return nil, err
	}
	idx := columnIndices(meta, opts.Columns)
	if idx == nil {
		idx = make([]int, len(meta.Columns))
		for i := range idx {
			idx[i] = i
		}
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		rec := make(map[string]any, len(idx))
		for _, j := range idx {
			var v any
			if j < len(row) {
				v = row[j]
			}
			rec[meta.Columns[j].Name] = v
		}
		out[i] = rec
	}
	return out, nil
}

// columnIndices resolves a case-insensitive column filter to positional
// indices in schema order. A nil result means no filtering; a non-empty
// filter that matches nothing resolves to an empty, non-nil slice so the
// projection retains zero columns.
func columnIndices(meta *metadata.Metadata, columns []string) []int {
	if len(columns) == 0 {
		return nil
	}
	idx := make([]int, 0, len(columns))
	for i, c := range meta.Columns {
		for _, want := range columns {
			if strings.EqualFold(c.Name, want) {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// scan is the shared cursor engine behind ReadRows and ReadRecords. It
// validates the range, repositions the stream, skips forward to the start
// row, and collects scanned rows until the length cap or end of stream.
func (d *Dataset) scan(opts ReadOptions) (*metadata.Metadata, [][]any, error) {
	meta, err := d.Metadata()
	if err != nil {
		return nil, nil, err
	}
	if opts.Start < 0 || opts.Start > meta.Records || opts.Length < 0 {
		return nil, nil, &InvalidRangeError{Start: opts.Start, Length: opts.Length, Records: meta.Records}
	}

	// Forward continuation reuses the open stream; anything else tears it
	// down and rewinds to row 0.
	if d.stream == nil || opts.Start < d.cursor || (d.exhausted && opts.Start != d.cursor) {
		if err := d.reopenRows(); err != nil {
			return nil, nil, err
		}
	}

	for d.cursor < opts.Start {
		_, ok, err := d.nextRow()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			d.exhausted = true
			return meta, nil, nil
		}
		d.cursor++
	}

	var names []string
	var out [][]any
	for opts.Length == 0 || len(out) < opts.Length {
		row, ok, err := d.nextRow()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			d.exhausted = true
			break
		}
		d.cursor++

		if opts.Where != nil {
			if names == nil {
				names = meta.ColumnNames()
			}
			rec := make(map[string]any, len(names))
			for i, name := range names {
				if i < len(row) {
					rec[name] = row[i]
				}
			}
			if !opts.Where.Matches(rec) {
				continue
			}
		}
		out = append(out, row)
	}
	return meta, out, nil
}

// nextRow pulls the next raw row from the open stream. ok is false at end
// of stream.
func (d *Dataset) nextRow() (row []any, ok bool, err error) {
	if d.format == metadata.FormatNDJSON {
		return d.nextLine()
	}
	if d.dec == nil || !d.dec.More() {
		return nil, false, nil
	}
	if err := d.dec.Decode(&row); err != nil {
		return nil, false, fmt.Errorf("failed to decode row: %w", err)
	}
	return row, true, nil
}

// nextLine pulls the next non-empty line and parses it as a row array.
func (d *Dataset) nextLine() ([]any, bool, error) {
	if d.lines == nil {
		return nil, false, nil
	}
	for {
		line, err := d.lines.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("failed to read row: %w", err)
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			if err != nil {
				return nil, false, nil
			}
			continue
		}
		var row []any
		if uerr := segjson.Unmarshal(trimmed, &row); uerr != nil {
			return nil, false, fmt.Errorf("failed to parse row: %w", uerr)
		}
		return row, true, nil
	}
}

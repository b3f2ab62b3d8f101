package reader

import "iter"

// DefaultChunkSize is the bounded-read size used by the lazy iterators when
// none is given.
const DefaultChunkSize = 1000

// IterOptions configures a lazy full-dataset traversal.
type IterOptions struct {
	// Start is the row index the traversal begins at.
	Start int64
	// ChunkSize is the bounded-read size per underlying call.
	ChunkSize int
	// Columns restricts the produced cells, matched case-insensitively.
	Columns []string
}

// Rows returns a lazy forward-only sequence of positional rows, produced by
// repeated bounded reads of ChunkSize rows. The sequence ends at the first
// short chunk or when the session reports exhaustion. Each top-level call
// walks the dataset afresh, reopening the stream when a prior traversal
// already consumed it, so repeated full traversals are idempotent.
func (d *Dataset) Rows(opts IterOptions) iter.Seq2[[]any, error] {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return func(yield func([]any, error) bool) {
		start := opts.Start
		for {
			rows, err := d.ReadRows(ReadOptions{Start: start, Length: chunk, Columns: opts.Columns})
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if len(rows) < chunk || d.exhausted {
				return
			}
			start += int64(len(rows))
		}
	}
}

// Records is Rows in name-keyed form.
func (d *Dataset) Records(opts IterOptions) iter.Seq2[map[string]any, error] {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return func(yield func(map[string]any, error) bool) {
		start := opts.Start
		for {
			recs, err := d.ReadRecords(ReadOptions{Start: start, Length: chunk, Columns: opts.Columns})
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range recs {
				if !yield(rec, nil) {
					return
				}
			}
			if len(recs) < chunk || d.exhausted {
				return
			}
			start += int64(len(recs))
		}
	}
}

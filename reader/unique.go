package reader

import (
	"fmt"
	"sort"
)

// UniqueOptions configures a per-column unique-value aggregation.
type UniqueOptions struct {
	// Columns are the target columns, resolved case-insensitively.
	Columns []string
	// Limit caps the distinct values collected per column; 0 is unlimited.
	Limit int
	// ChunkSize is the bounded-read size of the underlying traversal.
	ChunkSize int
	// Sort orders each column's collected values ascending by the natural
	// order of their underlying type after collection finishes.
	Sort bool
	// Counts also tallies occurrences for every distinct value observed,
	// keyed by value and not capped by Limit.
	Counts bool
}

// ColumnValues holds the aggregation result for one column.
type ColumnValues struct {
	// Values is the bounded list of distinct values in first-seen order,
	// or sorted when requested.
	Values []any
	// Counts maps every distinct value to its occurrence count. Nil
	// unless counts were requested.
	Counts map[any]int64
}

// UniqueValues scans the dataset once and collects up to Limit distinct
// values per requested column. Null and absent cells never count toward the
// limit. When every column has reached the limit and no counts were
// requested, the scan stops early; counts require the full dataset, so they
// disable the short-circuit.
func (d *Dataset) UniqueValues(opts UniqueOptions) (map[string]*ColumnValues, error) {
	meta, err := d.Metadata()
	if err != nil {
		return nil, err
	}

	// Requests that alias the same schema column collapse to one entry,
	// so a row contributes to each column's tallies exactly once.
	resolved := make([]string, 0, len(opts.Columns))
	requested := make(map[string]struct{}, len(opts.Columns))
	var unknown []string
	for _, name := range opts.Columns {
		i := meta.ColumnIndex(name)
		if i < 0 {
			unknown = append(unknown, name)
			continue
		}
		canonical := meta.Columns[i].Name
		if _, dup := requested[canonical]; dup {
			continue
		}
		requested[canonical] = struct{}{}
		resolved = append(resolved, canonical)
	}
	if len(unknown) > 0 {
		return nil, &UnknownColumnError{Columns: unknown}
	}

	result := make(map[string]*ColumnValues, len(resolved))
	seen := make(map[string]map[any]struct{}, len(resolved))
	for _, name := range resolved {
		cv := &ColumnValues{}
		if opts.Counts {
			cv.Counts = make(map[any]int64)
		}
		result[name] = cv
		seen[name] = make(map[any]struct{})
	}
	if len(resolved) == 0 {
		return result, nil
	}

	allFull := func() bool {
		if opts.Limit <= 0 || opts.Counts {
			return false
		}
		for _, name := range resolved {
			if len(result[name].Values) < opts.Limit {
				return false
			}
		}
		return true
	}

	for rec, err := range d.Records(IterOptions{ChunkSize: opts.ChunkSize, Columns: resolved}) {
		if err != nil {
			return nil, err
		}
		for _, name := range resolved {
			v, ok := rec[name]
			if !ok || v == nil {
				continue
			}
			v = hashable(v)
			cv := result[name]
			if cv.Counts != nil {
				cv.Counts[v]++
			}
			if _, dup := seen[name][v]; !dup {
				if opts.Limit <= 0 || len(cv.Values) < opts.Limit {
					seen[name][v] = struct{}{}
					cv.Values = append(cv.Values, v)
				}
			}
		}
		if allFull() {
			break
		}
	}

	if opts.Sort {
		for _, cv := range result {
			sortValues(cv.Values)
		}
	}
	return result, nil
}

// hashable folds non-comparable cell values (nested arrays or objects) to
// their string form so they can key the distinct set.
func hashable(v any) any {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// sortValues orders values ascending: numbers before strings before bools,
// each group by its natural order.
func sortValues(values []any) {
	sort.SliceStable(values, func(i, j int) bool {
		return lessValue(values[i], values[j])
	})
}

func lessValue(a, b any) bool {
	an, aNum := asFloat(a)
	bn, bNum := asFloat(b)
	if aNum && bNum {
		return an < bn
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as < bs
	}
	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		return !ab && bb
	}
	return typeRank(a) < typeRank(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func typeRank(v any) int {
	if _, ok := asFloat(v); ok {
		return 0
	}
	if _, ok := v.(string); ok {
		return 1
	}
	if _, ok := v.(bool); ok {
		return 2
	}
	return 3
}

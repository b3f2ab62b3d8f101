package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"
)

// predicateFunc adapts a plain function to the Predicate interface.
type predicateFunc func(row map[string]any) bool

func (f predicateFunc) Matches(row map[string]any) bool { return f(row) }

const testHeader = `"datasetJSONCreationDateTime":"2026-03-01T10:00:00",` +
	`"datasetJSONVersion":"1.1.0",` +
	`"records":%d,` +
	`"name":"DM",` +
	`"label":"Demographics",` +
	`"columns":[` +
	`{"itemOID":"IT.DM.USUBJID","name":"USUBJID","label":"Unique Subject Identifier","dataType":"string"},` +
	`{"itemOID":"IT.DM.AGE","name":"AGE","label":"Age","dataType":"integer"}]`

// tenRows is S1..S10 with ages 21..30.
func tenRows() string {
	out := ""
	for i := 1; i <= 10; i++ {
		if i > 1 {
			out += ","
		}
		out += fmt.Sprintf(`["S%d",%d]`, i, 20+i)
	}
	return out
}

func writeJSONFixture(t *testing.T, records int, rowsJSON string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dm.json")
	doc := `{` + fmt.Sprintf(testHeader, records) + `,"rows":[` + rowsJSON + `]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeNDJSONFixture(t *testing.T, records int, rowLines []string, compress bool) string {
	t.Helper()
	name := "dm.ndjson"
	if compress {
		name = "dm.ndjson.gz"
	}
	path := filepath.Join(t.TempDir(), name)
	doc := `{` + fmt.Sprintf(testHeader, records) + `}` + "\n"
	for _, line := range rowLines {
		doc += line + "\n"
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if compress {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write([]byte(doc)); err != nil {
			t.Fatal(err)
		}
		if err := gz.Close(); err != nil {
			t.Fatal(err)
		}
	} else if _, err := f.WriteString(doc); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path       string
		format     string
		compressed bool
	}{
		{"dm.json", "json", false},
		{"dm.ndjson", "ndjson", false},
		{"dm.djs", "ndjson", false},
		{"dm.ndjson.gz", "ndjson", true},
		{"dm.json.gz", "ndjson", true},
		{"dm.dsjc", "ndjson", true},
		{"DM.NDJSON", "ndjson", false},
	}
	for _, tt := range tests {
		format, compressed := detectFormat(tt.path)
		if format.String() != tt.format || compressed != tt.compressed {
			t.Errorf("detectFormat(%q) = %v/%v, want %v/%v",
				tt.path, format, compressed, tt.format, tt.compressed)
		}
	}
}

func TestOpen_UnsupportedEncoding(t *testing.T) {
	_, err := Open("dm.json", WithEncoding("utf-32"))
	var encErr *UnsupportedEncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("Open() error = %v, want UnsupportedEncodingError", err)
	}
	if encErr.Encoding != "utf-32" {
		t.Errorf("Encoding = %q, want utf-32", encErr.Encoding)
	}
}

func TestOpen_ErrIfMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.json"), ErrIfMissing()); err == nil {
		t.Error("Open() on a missing file with ErrIfMissing succeeded, want error")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Errorf("Open() without ErrIfMissing failed: %v", err)
	}
}

func TestReadRows_All(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	rows, err := ds.ReadRows(ReadOptions{})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	want := [][]any{
		{"S1", float64(25)},
		{"S2", float64(30)},
		{"S3", float64(30)},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ReadRows() = %v, want %v", rows, want)
	}
}

func TestReadRows_ResumableWindows(t *testing.T) {
	path := writeJSONFixture(t, 10, tenRows())
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	first, err := ds.ReadRows(ReadOptions{Start: 0, Length: 5})
	if err != nil {
		t.Fatalf("first window: %v", err)
	}
	second, err := ds.ReadRows(ReadOptions{Start: 5, Length: 5})
	if err != nil {
		t.Fatalf("second window: %v", err)
	}

	fresh, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fresh.Close() }()
	all, err := fresh.ReadRows(ReadOptions{Start: 0, Length: 10})
	if err != nil {
		t.Fatalf("single read: %v", err)
	}

	joined := append(append([][]any{}, first...), second...)
	if !reflect.DeepEqual(joined, all) {
		t.Errorf("windowed read = %v, want %v", joined, all)
	}
}

func TestReadRows_BackwardStartRestarts(t *testing.T) {
	path := writeJSONFixture(t, 10, tenRows())
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	if _, err := ds.ReadRows(ReadOptions{Start: 6, Length: 2}); err != nil {
		t.Fatal(err)
	}
	rows, err := ds.ReadRows(ReadOptions{Start: 2, Length: 1})
	if err != nil {
		t.Fatalf("backward read: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "S3" {
		t.Errorf("rows = %v, want [[S3 23]]", rows)
	}
}

func TestReadRows_ExhaustedRestarts(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	if _, err := ds.ReadRows(ReadOptions{}); err != nil {
		t.Fatal(err)
	}
	if !ds.exhausted {
		t.Fatal("session not exhausted after full read")
	}

	rows, err := ds.ReadRows(ReadOptions{Start: 1, Length: 1})
	if err != nil {
		t.Fatalf("read after exhaustion: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "S2" {
		t.Errorf("rows = %v, want [[S2 30]]", rows)
	}
}

func TestReadRows_InvalidRange(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	tests := []struct {
		name string
		opts ReadOptions
	}{
		{"negative start", ReadOptions{Start: -1}},
		{"start beyond records", ReadOptions{Start: 4}},
		{"negative length", ReadOptions{Length: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ds.ReadRows(tt.opts)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Errorf("ReadRows(%+v) error = %v, want InvalidRangeError", tt.opts, err)
			}
		})
	}

	// start == records is the exclusive upper bound and reads nothing.
	rows, err := ds.ReadRows(ReadOptions{Start: 3})
	if err != nil {
		t.Fatalf("ReadRows(start=records) error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ReadRows(start=records) = %v, want empty", rows)
	}
}

func TestReadRows_PredicateScansPastMatches(t *testing.T) {
	path := writeJSONFixture(t, 10, tenRows())
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	// Ages 21..30; even ages sit at rows 2,4,6,8,10.
	even := predicateFunc(func(row map[string]any) bool {
		age, ok := row["AGE"].(float64)
		return ok && int(age)%2 == 0
	})

	rows, err := ds.ReadRows(ReadOptions{Length: 3, Where: even})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if int(row[1].(float64))%2 != 0 {
			t.Errorf("row %v does not match predicate", row)
		}
	}
	// Rows S1..S6 were scanned to find 3 matches.
	if ds.cursor != 6 {
		t.Errorf("cursor = %d, want 6 (rows scanned, not rows returned)", ds.cursor)
	}

	// Continuation from the scan position picks up S7 next.
	next, err := ds.ReadRows(ReadOptions{Start: 6, Length: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 1 || next[0][0] != "S7" {
		t.Errorf("continuation = %v, want [[S7 27]]", next)
	}
}

func TestReadRows_ColumnFilterPositional(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	rows, err := ds.ReadRows(ReadOptions{Columns: []string{"age"}})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	want := [][]any{{float64(25)}, {float64(30)}, {float64(30)}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ReadRows() = %v, want %v", rows, want)
	}
}

func TestReadRecords_ColumnFilter(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	recs, err := ds.ReadRecords(ReadOptions{Columns: []string{"AGE"}})
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	want := []map[string]any{
		{"AGE": float64(25)},
		{"AGE": float64(30)},
		{"AGE": float64(30)},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("ReadRecords() = %v, want %v", recs, want)
	}
}

func TestReadRows_ColumnFilterNoMatches(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	// A filter that resolves no column retains zero columns, not all.
	rows, err := ds.ReadRows(ReadOptions{Columns: []string{"NOPE"}})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ReadRows() returned %d rows, want 3", len(rows))
	}
	for i, row := range rows {
		if len(row) != 0 {
			t.Errorf("row %d = %v, want zero retained cells", i, row)
		}
	}

	recs, err := ds.ReadRecords(ReadOptions{Columns: []string{"NOPE"}})
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ReadRecords() returned %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if len(rec) != 0 {
			t.Errorf("record %d = %v, want no retained columns", i, rec)
		}
	}
}

func TestReadRows_NDJSON(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			path := writeNDJSONFixture(t, 3, []string{`["S1",25]`, `["S2",30]`, `["S3",30]`}, compress)
			ds, err := Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = ds.Close() }()

			meta, err := ds.Metadata()
			if err != nil {
				t.Fatalf("Metadata() error = %v", err)
			}
			if meta.Records != 3 {
				t.Errorf("Records = %d, want 3", meta.Records)
			}

			rows, err := ds.ReadRows(ReadOptions{Start: 1})
			if err != nil {
				t.Fatalf("ReadRows() error = %v", err)
			}
			want := [][]any{{"S2", float64(30)}, {"S3", float64(30)}}
			if !reflect.DeepEqual(rows, want) {
				t.Errorf("ReadRows() = %v, want %v", rows, want)
			}
		})
	}
}

func TestReadRows_Latin1Encoding(t *testing.T) {
	doc := `{"datasetJSONCreationDateTime":"2026-03-01T10:00:00",` +
		`"datasetJSONVersion":"1.1.0",` +
		`"records":1,` +
		`"name":"DM",` +
		`"label":"Démographie",` +
		`"columns":[{"itemOID":"IT.DM.USUBJID","name":"USUBJID","label":"Sujet","dataType":"string"}]}` + "\n" +
		`["José"]` + "\n"

	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "dm.ndjson")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := Open(path, WithEncoding(EncodingLatin1))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	meta, err := ds.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.Label != "Démographie" {
		t.Errorf("Label = %q, want Démographie", meta.Label)
	}
	rows, err := ds.ReadRows(ReadOptions{})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "José" {
		t.Errorf("rows = %v, want [[José]]", rows)
	}
}

func TestMetadata_CachedAndInvalidated(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ds.Close() }()

	first, err := ds.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	again, err := ds.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("unchanged file re-parsed the header instead of using the cache")
	}

	doc := `{` + fmt.Sprintf(testHeader, 1) + `,"rows":[["S9",99]]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	// Push the mtime forward past filesystem timestamp granularity.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	reparsed, err := ds.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if reparsed.Records != 1 {
		t.Errorf("Records = %d, want 1 after file change", reparsed.Records)
	}
}

func TestClose_Idempotent(t *testing.T) {
	path := writeJSONFixture(t, 3, `["S1",25],["S2",30],["S3",30]`)
	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ds.ReadRows(ReadOptions{Length: 1}); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	// Reading after Close reopens the stream.
	rows, err := ds.ReadRows(ReadOptions{Length: 1})
	if err != nil {
		t.Fatalf("read after Close: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "S1" {
		t.Errorf("rows = %v, want [[S1 25]]", rows)
	}
}

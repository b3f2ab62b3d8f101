package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/defineEditor/go-dataset-json/metadata"
	"github.com/defineEditor/go-dataset-json/reader"
	"github.com/defineEditor/go-dataset-json/writer"
)

func testDataset(t *testing.T) *reader.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dm.json")
	meta := &metadata.Metadata{
		DatasetJSONCreationDateTime: "2026-03-01T10:00:00",
		DatasetJSONVersion:          "1.1.0",
		Records:                     2,
		Name:                        "DM",
		Label:                       "Demographics",
		Columns: []metadata.Column{
			{ItemOID: "IT.DM.USUBJID", Name: "USUBJID", Label: "Subject", DataType: "string"},
			{ItemOID: "IT.DM.AGE", Name: "AGE", Label: "Age", DataType: "integer"},
		},
	}
	rows := [][]any{{"S1", 25}, {"S2", 30}}
	if err := writer.New(path, writer.Options{}).WriteAll(meta, rows); err != nil {
		t.Fatal(err)
	}
	ds, err := reader.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvert_RoundTrip(t *testing.T) {
	ds := testDataset(t)
	target := filepath.Join(t.TempDir(), "dm.ndjson.gz")

	if err := convert(ds, target, quietLogger()); err != nil {
		t.Fatalf("convert() error = %v", err)
	}

	out, err := reader.Open(target)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = out.Close() }()
	rows, err := out.ReadRows(reader.ReadOptions{})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	want := [][]any{{"S1", float64(25)}, {"S2", float64(30)}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("converted rows = %v, want %v", rows, want)
	}
}

func TestConvert_BadTargetClosesSource(t *testing.T) {
	ds := testDataset(t)
	target := filepath.Join(t.TempDir(), "missing", "dm.json")

	if err := convert(ds, target, quietLogger()); err == nil {
		t.Fatal("convert() to an uncreatable path succeeded, want error")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("Stat(%s) err = %v, want not-exist", target, err)
	}
	// The source session stays usable after a failed conversion.
	rows, err := ds.ReadRows(reader.ReadOptions{Length: 1})
	if err != nil {
		t.Fatalf("ReadRows() after failed convert error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("ReadRows() = %v, want one row", rows)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"USUBJID", []string{"USUBJID"}},
		{"USUBJID, AGE ,SEX", []string{"USUBJID", "AGE", "SEX"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCanonicalColumns(t *testing.T) {
	meta := &metadata.Metadata{Columns: []metadata.Column{
		{Name: "USUBJID"},
		{Name: "AGE"},
	}}
	got := canonicalColumns(meta, []string{"age", "nope", "usubjid"})
	want := []string{"USUBJID", "AGE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("canonicalColumns() = %v, want %v", got, want)
	}
}

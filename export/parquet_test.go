package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
		Records:                     3,
		Name:                        "DM",
		Label:                       "Demographics",
		Columns: []metadata.Column{
			{ItemOID: "IT.DM.USUBJID", Name: "USUBJID", Label: "Subject", DataType: "string"},
			{ItemOID: "IT.DM.AGE", Name: "AGE", Label: "Age", DataType: "integer"},
			{ItemOID: "IT.DM.WEIGHT", Name: "WEIGHT", Label: "Weight", DataType: "float"},
		},
	}
	rows := [][]any{
		{"S1", 25, 70.5},
		{"S2", 30, nil},
		{"S3", 30, 81.2},
	}
	require.NoError(t, writer.New(path, writer.Options{}).WriteAll(meta, rows))

	ds, err := reader.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestToParquet(t *testing.T) {
	ds := testDataset(t)
	out := filepath.Join(t.TempDir(), "dm.parquet")

	written, err := ToParquet(ds, out, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), written)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, st.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(3), pf.NumRows())

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, fld := range fields {
		names[i] = fld.Name()
	}
	assert.ElementsMatch(t, []string{"USUBJID", "AGE", "WEIGHT"}, names)

	rows, err := parquet.Read[map[string]any](f, st.Size())
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestColumnNode(t *testing.T) {
	tests := []struct {
		dataType string
		leaf     parquet.Type
	}{
		{"integer", parquet.Int64Type},
		{"float", parquet.DoubleType},
		{"double", parquet.DoubleType},
		{"boolean", parquet.BooleanType},
		{"string", parquet.ByteArrayType},
		{"datetime", parquet.ByteArrayType},
	}
	for _, tt := range tests {
		node := columnNode(tt.dataType)
		if node.Type().Kind() != tt.leaf.Kind() {
			t.Errorf("columnNode(%q) kind = %v, want %v", tt.dataType, node.Type().Kind(), tt.leaf.Kind())
		}
	}
}

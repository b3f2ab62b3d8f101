// Package export converts datasets to Apache Parquet.
//
// The dataset schema is mapped column-by-column to an optional parquet node
// and rows are streamed through the lazy iterator in bounded chunks, so the
// dataset is never held in memory as a whole.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/defineEditor/go-dataset-json/metadata"
	"github.com/defineEditor/go-dataset-json/reader"
)

// DefaultChunkSize is the rows-per-write batch when none is given.
const DefaultChunkSize = 1000

// ToParquet streams the dataset to a parquet file at path, returning the
// number of rows written. chunkSize bounds both the iterator reads and the
// write batches; 0 selects DefaultChunkSize.
func ToParquet(ds *reader.Dataset, path string, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	meta, err := ds.Metadata()
	if err != nil {
		return 0, err
	}
	schema := buildSchema(meta)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	pw := parquet.NewGenericWriter[map[string]any](f, schema)

	var written int64
	batch := make([]map[string]any, 0, chunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}
		written += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for rec, err := range ds.Records(reader.IterOptions{ChunkSize: chunkSize}) {
		if err != nil {
			_ = pw.Close()
			_ = f.Close()
			return 0, err
		}
		batch = append(batch, convertRecord(meta, rec))
		if len(batch) == chunkSize {
			if err := flush(); err != nil {
				_ = pw.Close()
				_ = f.Close()
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		_ = pw.Close()
		_ = f.Close()
		return 0, err
	}

	if err := pw.Close(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return written, nil
}

// buildSchema maps the dataset columns to an all-optional parquet group.
func buildSchema(meta *metadata.Metadata) *parquet.Schema {
	nodes := make(parquet.Group, len(meta.Columns))
	for _, col := range meta.Columns {
		nodes[col.Name] = parquet.Optional(columnNode(col.DataType))
	}
	return parquet.NewSchema(meta.Name, nodes)
}

// columnNode picks the parquet leaf for a Dataset-JSON data type. Temporal
// types stay as their ISO 8601 strings.
func columnNode(dataType string) parquet.Node {
	switch strings.ToLower(dataType) {
	case "integer":
		return parquet.Int(64)
	case "float", "double", "decimal":
		return parquet.Leaf(parquet.DoubleType)
	case "boolean":
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

// convertRecord coerces cell values to the parquet column types. Nulls are
// dropped so optional columns record them as missing.
func convertRecord(meta *metadata.Metadata, rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for _, col := range meta.Columns {
		v, ok := rec[col.Name]
		if !ok || v == nil {
			continue
		}
		switch strings.ToLower(col.DataType) {
		case "integer":
			if f, ok := v.(float64); ok {
				out[col.Name] = int64(f)
				continue
			}
		case "float", "double", "decimal", "boolean":
			// JSON decoding already yields float64 and bool.
		default:
			if _, ok := v.(string); !ok {
				out[col.Name] = fmt.Sprint(v)
				continue
			}
		}
		out[col.Name] = v
	}
	return out
}

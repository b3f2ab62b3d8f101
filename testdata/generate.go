package main

import (
	"log"

	"github.com/defineEditor/go-dataset-json/metadata"
	"github.com/defineEditor/go-dataset-json/writer"
)

func main() {
	meta := &metadata.Metadata{
		DatasetJSONCreationDateTime: "2026-03-01T10:00:00",
		DatasetJSONVersion:          "1.1.0",
		ItemGroupOID:                "IG.DM",
		Records:                     5,
		Name:                        "DM",
		Label:                       "Demographics",
		Columns: []metadata.Column{
			{ItemOID: "IT.DM.USUBJID", Name: "USUBJID", Label: "Unique Subject Identifier", DataType: "string"},
			{ItemOID: "IT.DM.SEX", Name: "SEX", Label: "Sex", DataType: "string"},
			{ItemOID: "IT.DM.AGE", Name: "AGE", Label: "Age", DataType: "integer"},
			{ItemOID: "IT.DM.WEIGHT", Name: "WEIGHT", Label: "Weight (kg)", DataType: "float"},
		},
	}

	rows := [][]any{
		{"STUDY01-001", "M", 30, 82.5},
		{"STUDY01-002", "F", 25, 61.3},
		{"STUDY01-003", "M", 35, 90.7},
		{"STUDY01-004", "F", 28, 55.2},
		{"STUDY01-005", "M", 42, nil},
	}

	targets := []struct {
		path string
		opts writer.Options
	}{
		{"dm.json", writer.Options{Format: metadata.FormatJSON}},
		{"dm.ndjson", writer.Options{Format: metadata.FormatNDJSON}},
		{"dm.ndjson.gz", writer.Options{Format: metadata.FormatNDJSON, Compress: true}},
	}

	for _, target := range targets {
		if err := writer.New(target.path, target.opts).WriteAll(meta, rows); err != nil {
			log.Fatal(err)
		}
		log.Printf("Generated %s with %d rows", target.path, len(rows))
	}
}

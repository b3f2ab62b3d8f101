// Command dsjcat reads, filters, converts and exports Dataset-JSON files.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	segjson "github.com/segmentio/encoding/json"

	"github.com/defineEditor/go-dataset-json/export"
	"github.com/defineEditor/go-dataset-json/filter"
	"github.com/defineEditor/go-dataset-json/metadata"
	"github.com/defineEditor/go-dataset-json/output"
	"github.com/defineEditor/go-dataset-json/reader"
	"github.com/defineEditor/go-dataset-json/writer"
)

var (
	metaFlag        = flag.Bool("meta", false, "Show dataset metadata instead of rows")
	formatFlag      = flag.String("f", "jsonl", "Output format: json, jsonl, csv, table")
	startFlag       = flag.Int64("start", 0, "First row to read")
	limitFlag       = flag.Int("limit", 0, "Limit number of rows (0 = unlimited)")
	columnsFlag     = flag.String("columns", "", "Comma-separated column projection")
	whereFlag       = flag.String("where", "", "Filter expression (e.g. \"AGE > 30 and SEX = 'M'\")")
	uniqueFlag      = flag.String("unique", "", "Comma-separated columns to collect unique values for")
	uniqueLimitFlag = flag.Int("unique-limit", 0, "Cap unique values per column (0 = unlimited)")
	countsFlag      = flag.Bool("counts", false, "Include occurrence counts with -unique")
	sortFlag        = flag.Bool("sort", false, "Sort unique values")
	encodingFlag    = flag.String("encoding", "utf-8", "File encoding: utf-8, latin-1, windows-1252")
	convertFlag     = flag.String("convert", "", "Rewrite the dataset to this path (shape from extension)")
	parquetFlag     = flag.String("parquet", "", "Export the dataset to this parquet file")
	verboseFlag     = flag.Bool("v", false, "Verbose diagnostics")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <dataset file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A tool to read, filter, convert and export Dataset-JSON files.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s dm.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -f csv -columns USUBJID,AGE dm.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -where \"AGE > 30\" dm.ndjson.gz\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -meta -f table dm.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -unique SEX,ARMCD -unique-limit 20 dm.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -convert dm.ndjson.gz dm.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -parquet dm.parquet dm.json\n", os.Args[0])
	}

	flag.Parse()

	logLevel := slog.LevelWarn
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if *limitFlag < 0 {
		fmt.Fprintf(os.Stderr, "Error: -limit must be non-negative, got %d\n", *limitFlag)
		os.Exit(1)
	}
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: missing dataset file argument\n\n")
		flag.Usage()
		os.Exit(1)
	}
	filename := flag.Arg(0)

	ds, err := reader.Open(filename,
		reader.WithEncoding(reader.Encoding(*encodingFlag)),
		reader.ErrIfMissing())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ds.Close() }()

	started := time.Now()
	switch {
	case *metaFlag:
		err = showMetadata(ds, *formatFlag)
	case *uniqueFlag != "":
		err = showUnique(ds, *uniqueFlag, *uniqueLimitFlag, *sortFlag, *countsFlag)
	case *convertFlag != "":
		err = convert(ds, *convertFlag, logger)
	case *parquetFlag != "":
		var written int64
		written, err = export.ToParquet(ds, *parquetFlag, 0)
		logger.Debug("parquet export finished", "rows", written, "path", *parquetFlag)
	default:
		err = catRows(ds, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("done", "elapsed", time.Since(started))
}

// catRows streams rows to stdout in the selected output format.
func catRows(ds *reader.Dataset, logger *slog.Logger) error {
	formatter, ok := output.New(*formatFlag, os.Stdout)
	if !ok {
		return fmt.Errorf("unknown output format %q", *formatFlag)
	}

	opts := reader.ReadOptions{
		Start:   *startFlag,
		Length:  *limitFlag,
		Columns: splitList(*columnsFlag),
	}
	if *whereFlag != "" {
		pred, err := filter.Parse(*whereFlag)
		if err != nil {
			return fmt.Errorf("invalid -where expression: %w", err)
		}
		opts.Where = pred
	}

	recs, err := ds.ReadRecords(opts)
	if err != nil {
		return err
	}
	logger.Debug("rows read", "count", len(recs))

	meta, err := ds.Metadata()
	if err != nil {
		return err
	}
	columns := splitList(*columnsFlag)
	if len(columns) == 0 {
		columns = meta.ColumnNames()
	} else {
		columns = canonicalColumns(meta, columns)
	}
	return formatter.Format(columns, recs)
}

// showMetadata prints the dataset header.
func showMetadata(ds *reader.Dataset, format string) error {
	meta, err := ds.Metadata()
	if err != nil {
		return err
	}

	if format == "table" || format == "csv" {
		if format == "table" {
			fmt.Printf("Name:    %s\n", meta.Name)
			fmt.Printf("Label:   %s\n", meta.Label)
			fmt.Printf("Records: %d\n", meta.Records)
			fmt.Printf("Version: %s\n", meta.DatasetJSONVersion)
			fmt.Printf("Created: %s\n\n", meta.DatasetJSONCreationDateTime)
		}

		columns := []string{"Name", "Label", "DataType", "ItemOID"}
		rows := make([]map[string]any, len(meta.Columns))
		for i, col := range meta.Columns {
			rows[i] = map[string]any{
				"Name":     col.Name,
				"Label":    col.Label,
				"DataType": col.DataType,
				"ItemOID":  col.ItemOID,
			}
		}
		if format == "csv" {
			return output.NewCSVFormatter(os.Stdout).Format(columns, rows)
		}
		return output.NewTableFormatter(os.Stdout).Format(columns, rows)
	}

	payload, err := segjson.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

// showUnique prints per-column unique values as indented JSON.
func showUnique(ds *reader.Dataset, columns string, limit int, sorted, counts bool) error {
	result, err := ds.UniqueValues(reader.UniqueOptions{
		Columns: splitList(columns),
		Limit:   limit,
		Sort:    sorted,
		Counts:  counts,
	})
	if err != nil {
		return err
	}

	view := make(map[string]any, len(result))
	for name, cv := range result {
		if counts {
			tally := make(map[string]int64, len(cv.Counts))
			for v, n := range cv.Counts {
				tally[fmt.Sprint(v)] = n
			}
			view[name] = map[string]any{"values": cv.Values, "counts": tally}
		} else {
			view[name] = cv.Values
		}
	}

	payload, err := segjson.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

// convert streams the dataset into a new file; shape and compression follow
// the target extension (.ndjson line-delimited, .gz/.dsjc compressed).
func convert(ds *reader.Dataset, target string, logger *slog.Logger) error {
	meta, err := ds.Metadata()
	if err != nil {
		return err
	}

	opts := writer.Options{Format: metadata.FormatJSON}
	lowered := strings.ToLower(target)
	if strings.HasSuffix(lowered, ".gz") || strings.HasSuffix(lowered, ".dsjc") {
		opts.Format = metadata.FormatNDJSON
		opts.Compress = true
	} else if strings.HasSuffix(lowered, ".ndjson") || strings.HasSuffix(lowered, ".djs") {
		opts.Format = metadata.FormatNDJSON
	}

	w := writer.New(target, opts)
	if err := w.Create(meta); err != nil {
		return err
	}

	var written int64
	for row, err := range ds.Rows(reader.IterOptions{}) {
		if err != nil {
			_ = w.Finalize()
			return err
		}
		if werr := w.WriteRows(row); werr != nil {
			_ = w.Finalize()
			return werr
		}
		written++
	}
	logger.Debug("converted", "rows", written, "path", target)
	return w.Finalize()
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// canonicalColumns maps requested names to the schema's canonical casing,
// dropping names the schema does not know.
func canonicalColumns(meta *metadata.Metadata, requested []string) []string {
	var out []string
	for _, col := range meta.Columns {
		for _, want := range requested {
			if strings.EqualFold(col.Name, want) {
				out = append(out, col.Name)
				break
			}
		}
	}
	return out
}

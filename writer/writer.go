// Package writer emits syntactically valid Dataset-JSON documents across
// multiple write calls separated in time.
//
// A Writer moves through idle, created and finalized states: Create opens
// the sink and emits the header, WriteRows appends rows with the correct
// separator discipline for the chosen shape, and Finalize closes the
// document. Every write flows through a FIFO queue that acknowledges a
// submission only once the sink accepted the bytes, so writes reach the
// sink in submission order even when individual writes have to wait for
// the sink to drain.
package writer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	segjson "github.com/segmentio/encoding/json"

	"github.com/defineEditor/go-dataset-json/metadata"
)

var (
	// ErrNoActiveStream is returned by WriteRows and Finalize before a
	// successful Create.
	ErrNoActiveStream = errors.New("No active write stream")

	// ErrMetadataRequired is returned by Create when no header is given.
	ErrMetadataRequired = errors.New("Metadata is required")
)

// Defaults for the optional write settings.
const (
	DefaultBufferSize       = 16 * 1024
	DefaultIndent           = 2
	DefaultCompressionLevel = gzip.BestCompression
)

// Options configures a write session. The zero value selects the
// single-object JSON shape, no compression and no pretty-printing.
type Options struct {
	// Format selects the document shape. Compression forces FormatNDJSON.
	Format metadata.Format
	// Compress gzips the output at CompressionLevel.
	Compress bool
	// CompressionLevel is the gzip level. The zero value selects the
	// default of 9 (best compression), which makes gzip.NoCompression
	// unrepresentable here; negative levels such as gzip.HuffmanOnly
	// pass through unchanged.
	CompressionLevel int
	// Pretty indents the JSON-shape output for human reading. It is
	// silently disabled when Compress is set, and has no effect on the
	// line-delimited shape.
	Pretty bool
	// Indent is the pretty-print indent width in spaces, defaulting to 2.
	Indent int
	// BufferSize is the sink buffer in bytes, defaulting to 16 KiB.
	BufferSize int
}

// Writer is an incremental write session bound to one target path.
//
// Writers are single-owner: calls must be serialized by the caller. Two
// writers targeting the same path are not coordinated; the second Create
// truncates whatever the first produced.
type Writer struct {
	path string
	opts Options

	file     *os.File
	gz       *gzip.Writer
	buf      *bufio.Writer
	queue    *sinkQueue
	active   bool
	firstRow bool
	indent   string
}

// New returns an idle Writer for the given path, applying option defaults.
func New(path string, opts Options) *Writer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Indent <= 0 {
		opts.Indent = DefaultIndent
	}
	if opts.CompressionLevel == 0 || opts.CompressionLevel > gzip.BestCompression {
		opts.CompressionLevel = DefaultCompressionLevel
	}
	if opts.Compress {
		// Compressed output is not meant to be human-read.
		opts.Pretty = false
		opts.Format = metadata.FormatNDJSON
	}
	return &Writer{
		path:   path,
		opts:   opts,
		indent: strings.Repeat(" ", opts.Indent),
	}
}

// Create opens the sink, truncating any existing file, and emits the
// header. For the JSON shape the header is emitted with an open rows
// bracket so later writes append directly inside the array; for the
// line-delimited shape the header is one self-contained line. Absent
// bookkeeping fields (creation timestamp, format version, file OID) are
// filled in.
func (w *Writer) Create(meta *metadata.Metadata) error {
	if meta == nil {
		return ErrMetadataRequired
	}
	if w.active {
		return fmt.Errorf("write stream already active for %s", w.path)
	}

	stamped := *meta
	if stamped.DatasetJSONCreationDateTime == "" {
		stamped.DatasetJSONCreationDateTime = time.Now().UTC().Format("2006-01-02T15:04:05")
	}
	if stamped.DatasetJSONVersion == "" {
		stamped.DatasetJSONVersion = "1.1.0"
	}
	if stamped.FileOID == "" {
		stamped.FileOID = uuid.NewString()
	}
	if err := stamped.Validate(); err != nil {
		return err
	}

	header, err := w.renderHeader(&stamped)
	if err != nil {
		return err
	}

	if err := w.openSink(); err != nil {
		return err
	}
	if err := w.queue.submit(header); err != nil {
		w.teardown()
		return err
	}
	w.active = true
	w.firstRow = true
	return nil
}

// WriteRows appends rows to the open document. Each row is pushed through
// the sink queue individually, preserving submission order across calls.
func (w *Writer) WriteRows(rows ...[]any) error {
	if !w.active {
		return ErrNoActiveStream
	}
	for _, row := range rows {
		payload, err := w.renderRow(row)
		if err != nil {
			return err
		}
		if err := w.queue.submit(payload); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes any trailing rows, closes the document and tears down
// the sink, returning the Writer to idle. For the line-delimited shape the
// final byte is a line terminator; for the JSON shape it is the closing
// brace.
func (w *Writer) Finalize(trailing ...[]any) error {
	if !w.active {
		return ErrNoActiveStream
	}
	if err := w.WriteRows(trailing...); err != nil {
		w.teardown()
		return err
	}

	if w.opts.Format == metadata.FormatJSON {
		closing := "]}"
		if w.opts.Pretty {
			closing = "\n" + w.indent + "]\n}"
		}
		if err := w.queue.submit([]byte(closing)); err != nil {
			w.teardown()
			return err
		}
	}

	return w.teardown()
}

// WriteAll is the one-call convenience path: Create, WriteRows, Finalize.
// Its output is identical to the three explicit calls.
func (w *Writer) WriteAll(meta *metadata.Metadata, rows [][]any) error {
	if err := w.Create(meta); err != nil {
		return err
	}
	if err := w.WriteRows(rows...); err != nil {
		w.teardown()
		return err
	}
	return w.Finalize()
}

// openSink opens the target file and layers the buffered and, when
// requested, gzip-compressed sink over it, then starts the write queue.
func (w *Writer) openSink() error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}

	sink := io.Writer(f)
	var gz *gzip.Writer
	if w.opts.Compress {
		gz, err = gzip.NewWriterLevel(f, w.opts.CompressionLevel)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to open gzip sink: %w", err)
		}
		sink = gz
	}

	w.file = f
	w.gz = gz
	w.buf = bufio.NewWriterSize(sink, w.opts.BufferSize)
	w.queue = newSinkQueue(w.buf)
	return nil
}

// teardown drains the queue, flushes and closes every sink layer, and
// returns the Writer to idle. Close errors do not leak descriptors: the
// file is closed regardless.
func (w *Writer) teardown() error {
	var err error
	if w.queue != nil {
		err = w.queue.close()
	}
	if w.buf != nil {
		if ferr := w.buf.Flush(); err == nil {
			err = ferr
		}
	}
	if w.gz != nil {
		if gerr := w.gz.Close(); err == nil {
			err = gerr
		}
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	w.file = nil
	w.gz = nil
	w.buf = nil
	w.queue = nil
	w.active = false
	return err
}

// renderHeader serializes the header for the chosen shape. The JSON shape
// replaces the closing brace with an open rows bracket.
func (w *Writer) renderHeader(meta *metadata.Metadata) ([]byte, error) {
	if w.opts.Format == metadata.FormatNDJSON {
		payload, err := segjson.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize header: %w", err)
		}
		return append(payload, '\n'), nil
	}

	var payload []byte
	var err error
	if w.opts.Pretty {
		payload, err = segjson.MarshalIndent(meta, "", w.indent)
	} else {
		payload, err = segjson.Marshal(meta)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize header: %w", err)
	}

	if w.opts.Pretty {
		payload = bytes.TrimSuffix(payload, []byte("\n}"))
		payload = append(payload, []byte(",\n"+w.indent+`"rows": [`)...)
	} else {
		payload = bytes.TrimSuffix(payload, []byte("}"))
		payload = append(payload, []byte(`,"rows":[`)...)
	}
	return payload, nil
}

// renderRow serializes one row with its leading separator.
func (w *Writer) renderRow(row []any) ([]byte, error) {
	cells, err := segjson.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize row: %w", err)
	}

	if w.opts.Format == metadata.FormatNDJSON {
		return append(cells, '\n'), nil
	}

	var b bytes.Buffer
	if !w.firstRow {
		b.WriteByte(',')
	}
	w.firstRow = false
	if w.opts.Pretty {
		b.WriteByte('\n')
		b.WriteString(w.indent)
		b.WriteString(w.indent)
	}
	b.Write(cells)
	return b.Bytes(), nil
}

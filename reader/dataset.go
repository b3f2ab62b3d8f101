// Package reader provides stateful streaming access to Dataset-JSON files.
//
// A Dataset session is bound to one path and owns at most one underlying
// file stream at a time. Rows are reached by streaming forward from the
// current cursor; reading from an earlier position tears the stream down and
// restarts from the beginning. Both document shapes are supported, with
// optional gzip decompression and text-encoding translation, and the whole
// dataset is never materialized in memory.
//
// Sessions are not safe for concurrent use; callers must serialize
// operations on a session.
package reader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"

	"github.com/defineEditor/go-dataset-json/metadata"
)

// Encoding selects the text encoding of the underlying file.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingLatin1      Encoding = "latin-1"
	EncodingWindows1252 Encoding = "windows-1252"
)

// valid reports whether the encoding is one of the supported set.
func (e Encoding) valid() bool {
	switch e {
	case "", EncodingUTF8, EncodingLatin1, EncodingWindows1252:
		return true
	}
	return false
}

// wrap layers a decoding reader over r for non-UTF-8 encodings.
func (e Encoding) wrap(r io.Reader) (io.Reader, error) {
	switch e {
	case "", EncodingUTF8:
		return r, nil
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	}
	return nil, &UnsupportedEncodingError{Encoding: string(e)}
}

// Dataset is a read session bound to one Dataset-JSON file.
//
// The parsed header is cached on the session and re-parsed when the file's
// modification time advances. The row stream is opened lazily on the first
// read and kept open across forward-continuing reads.
type Dataset struct {
	path       string
	format     metadata.Format
	compressed bool
	encoding   Encoding

	stream    *stream
	dec       *json.Decoder // json shape: positioned inside the rows array
	lines     *bufio.Reader // ndjson shape: positioned after the header line
	cursor    int64
	exhausted bool

	meta    *metadata.Metadata
	metaMod time.Time
}

// Option configures a Dataset session at construction time.
type Option func(*config)

type config struct {
	format       metadata.Format
	formatSet    bool
	compress     bool
	compressSet  bool
	encoding     Encoding
	errIfMissing bool
}

// WithFormat overrides the extension-based shape detection.
func WithFormat(f metadata.Format) Option {
	return func(c *config) { c.format = f; c.formatSet = true }
}

// WithCompression overrides the extension-based compression detection.
// Compressed files are always line-delimited.
func WithCompression(on bool) Option {
	return func(c *config) { c.compress = on; c.compressSet = true }
}

// WithEncoding selects the text encoding of the file. The default is UTF-8.
func WithEncoding(e Encoding) Option {
	return func(c *config) { c.encoding = e }
}

// ErrIfMissing makes Open fail immediately when the file does not exist,
// instead of deferring the failure to the first read.
func ErrIfMissing() Option {
	return func(c *config) { c.errIfMissing = true }
}

// Open creates a read session for the given path.
//
// The document shape and compression are detected from the file extension
// (.ndjson and .djs are line-delimited; .gz and .dsjc are gzip-compressed)
// unless overridden by options. The file itself is not opened until the
// first metadata or row access.
func Open(path string, opts ...Option) (*Dataset, error) {
	cfg := config{encoding: EncodingUTF8}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.encoding.valid() {
		return nil, &UnsupportedEncodingError{Encoding: string(cfg.encoding)}
	}

	format, compressed := detectFormat(path)
	if cfg.formatSet {
		format = cfg.format
	}
	if cfg.compressSet {
		compressed = cfg.compress
	}
	if compressed {
		format = metadata.FormatNDJSON
	}

	if cfg.errIfMissing {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	return &Dataset{
		path:       path,
		format:     format,
		compressed: compressed,
		encoding:   cfg.encoding,
	}, nil
}

// detectFormat infers shape and compression from the file extension.
func detectFormat(path string) (metadata.Format, bool) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".dsjc") {
		return metadata.FormatNDJSON, true
	}
	compressed := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")
	if compressed {
		return metadata.FormatNDJSON, true
	}
	if strings.HasSuffix(name, ".ndjson") || strings.HasSuffix(name, ".djs") {
		return metadata.FormatNDJSON, false
	}
	return metadata.FormatJSON, false
}

// Path returns the file path the session is bound to.
func (d *Dataset) Path() string { return d.path }

// Format returns the document shape of the session.
func (d *Dataset) Format() metadata.Format { return d.format }

// Compressed reports whether the underlying file is gzip-compressed.
func (d *Dataset) Compressed() bool { return d.compressed }

// Metadata returns the dataset header, parsing it on first access via a
// short-lived stream that stops as early as the document shape allows. The
// result is cached; if the file's modification time has advanced since the
// cached parse, the header is re-parsed and any open row stream is
// discarded as stale.
func (d *Dataset) Metadata() (*metadata.Metadata, error) {
	fi, err := os.Stat(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	if d.meta != nil && fi.ModTime().Equal(d.metaMod) {
		return d.meta, nil
	}
	if d.meta != nil {
		d.closeRows()
	}

	s, err := d.openStream()
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	var meta *metadata.Metadata
	if d.format == metadata.FormatNDJSON {
		meta, err = metadata.ParseNDJSON(s.r)
	} else {
		meta, err = metadata.ParseJSON(s.r)
	}
	if err != nil {
		return nil, err
	}

	d.meta = meta
	d.metaMod = fi.ModTime()
	return meta, nil
}

// Close tears down the session's row stream. It is safe to call multiple
// times; a closed session reopens its stream on the next read.
func (d *Dataset) Close() error {
	return d.closeRows()
}

// stream bundles the open descriptor with its decode wrappers.
type stream struct {
	file *os.File
	gz   *gzip.Reader
	r    io.Reader
}

func (s *stream) Close() error {
	var err error
	if s.gz != nil {
		err = s.gz.Close()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// openStream opens the file and layers gzip and text-encoding decoding over
// it. On error every descriptor opened so far is closed before returning.
func (d *Dataset) openStream() (*stream, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.path, err)
	}

	r := io.Reader(f)
	var gz *gzip.Reader
	if d.compressed {
		gz, err = gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open gzip stream for %s: %w", d.path, err)
		}
		r = gz
	}

	r, err = d.encoding.wrap(r)
	if err != nil {
		if gz != nil {
			_ = gz.Close()
		}
		_ = f.Close()
		return nil, err
	}

	return &stream{file: f, gz: gz, r: r}, nil
}

// reopenRows restarts the row stream from the beginning of the data,
// rewinding the cursor to 0.
func (d *Dataset) reopenRows() error {
	if err := d.closeRows(); err != nil {
		return err
	}

	s, err := d.openStream()
	if err != nil {
		return err
	}

	if d.format == metadata.FormatNDJSON {
		lines := bufio.NewReaderSize(s.r, 64*1024)
		if _, err := lines.ReadBytes('\n'); err != nil && !errors.Is(err, io.EOF) {
			_ = s.Close()
			return fmt.Errorf("failed to skip header line: %w", err)
		}
		d.lines = lines
	} else {
		dec := json.NewDecoder(s.r)
		found, err := seekRows(dec)
		if err != nil {
			_ = s.Close()
			return err
		}
		if found {
			d.dec = dec
		}
		// No rows member means an empty data section; the first nextRow
		// call reports exhaustion.
	}

	d.stream = s
	d.cursor = 0
	d.exhausted = false
	return nil
}

// closeRows closes the row stream and resets the cursor state.
func (d *Dataset) closeRows() error {
	var err error
	if d.stream != nil {
		err = d.stream.Close()
	}
	d.stream = nil
	d.dec = nil
	d.lines = nil
	d.cursor = 0
	d.exhausted = false
	return err
}

// seekRows walks the decoder to just inside the rows array, skipping every
// other header member. It reports false when the document has no rows
// member at all.
func seekRows(dec *json.Decoder) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, fmt.Errorf("failed to read document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, fmt.Errorf("failed to read member name: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, fmt.Errorf("expected a member name, got %v", keyTok)
		}
		if key == "rows" {
			tok, err := dec.Token()
			if err != nil {
				return false, fmt.Errorf("failed to read rows: %w", err)
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return false, fmt.Errorf("rows must be an array, got %v", tok)
			}
			return true, nil
		}
		if err := skipValue(dec); err != nil {
			return false, fmt.Errorf("failed to skip %q: %w", key, err)
		}
	}
	return false, nil
}

// skipValue consumes one JSON value, tracking nesting depth.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '[' && d != '{') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

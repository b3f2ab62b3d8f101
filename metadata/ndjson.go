package metadata

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
)

// maxHeaderLine bounds the first line of a line-delimited document. Headers
// are small; a line this long means the file is not line-delimited.
const maxHeaderLine = 4 * 1024 * 1024

// ParseNDJSON extracts the header from a line-delimited document: the header
// is exactly the first line, a compact JSON object with no rows member. The
// reader must already be decompressed.
func ParseNDJSON(r io.Reader) (*Metadata, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, &MissingMetadataError{Missing: missingNames(0)}
	}

	// Presence is judged on the raw members, not on zero values, so a
	// legitimate records of 0 still counts as present.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header line: %w", err)
	}
	var seen fieldBit
	for key := range raw {
		if bit, ok := requiredFields[key]; ok {
			seen |= bit
		}
	}
	if seen != allRequired {
		return nil, &MissingMetadataError{Missing: missingNames(seen)}
	}

	meta := &Metadata{}
	if err := json.Unmarshal(line, meta); err != nil {
		return nil, fmt.Errorf("failed to decode header line: %w", err)
	}
	return meta, nil
}

// readLine reads up to the first line break, tolerating a header that is the
// entire input (no trailing newline).
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header line: %w", err)
	}
	if len(line) > maxHeaderLine {
		return nil, fmt.Errorf("header line exceeds %d bytes", maxHeaderLine)
	}
	return line, nil
}

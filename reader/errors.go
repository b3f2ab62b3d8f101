package reader

import (
	"fmt"
	"strings"
)

// InvalidRangeError reports a read request whose start or length falls
// outside the dataset's declared bounds.
type InvalidRangeError struct {
	Start   int64
	Length  int
	Records int64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid read range: start %d, length %d (dataset declares %d records)",
		e.Start, e.Length, e.Records)
}

// UnknownColumnError names every requested column that could not be
// resolved against the dataset header.
type UnknownColumnError struct {
	Columns []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown columns: %s", strings.Join(e.Columns, ", "))
}

// UnsupportedEncodingError reports a session constructed with a text
// encoding outside the supported set.
type UnsupportedEncodingError struct {
	Encoding string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported encoding %q (supported: %s, %s, %s)",
		e.Encoding, EncodingUTF8, EncodingLatin1, EncodingWindows1252)
}

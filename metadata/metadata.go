// Package metadata defines the Dataset-JSON header model and the streaming
// parsers that extract it from either document shape.
//
// A header describes the dataset's identity (name, label, OIDs), its declared
// record count and its ordered column schema. Required fields are tracked
// with an explicit presence bitset while parsing, so a document that scatters
// header members before and after the rows array is still handled in one
// forward pass.
package metadata

import (
	"fmt"
	"strings"
)

// Format selects the on-disk document shape.
type Format int

const (
	// FormatJSON is a single top-level JSON object with a "rows" array.
	FormatJSON Format = iota
	// FormatNDJSON is one header line followed by one JSON array per row.
	FormatNDJSON
)

// String returns the conventional name of the format.
func (f Format) String() string {
	if f == FormatNDJSON {
		return "ndjson"
	}
	return "json"
}

// Column describes one variable of the dataset.
//
// Name is the case-insensitive identity used for lookups; ItemOID carries
// the source identifier from the defining metadata. Columns are immutable
// once the header has been parsed.
type Column struct {
	ItemOID        string `json:"itemOID"`
	Name           string `json:"name"`
	Label          string `json:"label"`
	DataType       string `json:"dataType"`
	TargetDataType string `json:"targetDataType,omitempty"`
	Length         int    `json:"length,omitempty"`
	DisplayFormat  string `json:"displayFormat,omitempty"`
	KeySequence    int    `json:"keySequence,omitempty"`
}

// Metadata is the Dataset-JSON header.
//
// The JSON field names follow the Dataset-JSON v1.1 vocabulary. Rows are
// never part of this struct; the reader streams them separately.
type Metadata struct {
	DatasetJSONCreationDateTime string   `json:"datasetJSONCreationDateTime"`
	DatasetJSONVersion          string   `json:"datasetJSONVersion"`
	FileOID                     string   `json:"fileOID,omitempty"`
	DBLastModifiedDateTime      string   `json:"dbLastModifiedDateTime,omitempty"`
	Originator                  string   `json:"originator,omitempty"`
	SourceSystem                string   `json:"sourceSystem,omitempty"`
	SourceSystemVersion         string   `json:"sourceSystemVersion,omitempty"`
	StudyOID                    string   `json:"studyOID,omitempty"`
	MetaDataVersionOID          string   `json:"metaDataVersionOID,omitempty"`
	MetaDataRef                 string   `json:"metaDataRef,omitempty"`
	ItemGroupOID                string   `json:"itemGroupOID,omitempty"`
	Records                     int64    `json:"records"`
	Name                        string   `json:"name"`
	Label                       string   `json:"label"`
	Columns                     []Column `json:"columns"`
}

// fieldBit marks one required header field in the presence bitset.
type fieldBit uint8

const (
	fieldCreationDateTime fieldBit = 1 << iota
	fieldVersion
	fieldRecords
	fieldName
	fieldLabel
	fieldColumns

	allRequired = fieldCreationDateTime | fieldVersion | fieldRecords |
		fieldName | fieldLabel | fieldColumns
)

// requiredFields maps JSON member names to their presence bit.
var requiredFields = map[string]fieldBit{
	"datasetJSONCreationDateTime": fieldCreationDateTime,
	"datasetJSONVersion":          fieldVersion,
	"records":                     fieldRecords,
	"name":                        fieldName,
	"label":                       fieldLabel,
	"columns":                     fieldColumns,
}

// requiredOrder keeps error messages deterministic.
var requiredOrder = []string{
	"datasetJSONCreationDateTime",
	"datasetJSONVersion",
	"records",
	"name",
	"label",
	"columns",
}

// missingNames lists the required member names absent from the bitset.
func missingNames(seen fieldBit) []string {
	var missing []string
	for _, name := range requiredOrder {
		if seen&requiredFields[name] == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// MissingMetadataError reports a header that ended before every required
// field was observed. Missing lists the absent member names.
type MissingMetadataError struct {
	Missing []string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("required metadata elements missing: %s", strings.Join(e.Missing, ", "))
}

// Validate checks that every required header field carries a value. Records
// is numeric and always counts as present; all other required fields must be
// non-empty. Failures are reported as a *MissingMetadataError.
func (m *Metadata) Validate() error {
	seen := fieldRecords
	if m.DatasetJSONCreationDateTime != "" {
		seen |= fieldCreationDateTime
	}
	if m.DatasetJSONVersion != "" {
		seen |= fieldVersion
	}
	if m.Name != "" {
		seen |= fieldName
	}
	if m.Label != "" {
		seen |= fieldLabel
	}
	if len(m.Columns) > 0 {
		seen |= fieldColumns
	}
	if seen != allRequired {
		return &MissingMetadataError{Missing: missingNames(seen)}
	}
	return nil
}

// ColumnIndex returns the position of the named column, matching
// case-insensitively, or -1 if the header has no such column.
func (m *Metadata) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in schema order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

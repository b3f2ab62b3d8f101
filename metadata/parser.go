package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseJSON extracts the header from a single-object document by walking the
// decoder token stream. Header members may appear before the rows array or
// after it (footer statistics written last); the walk records each required
// member as it is seen and returns as soon as the presence bitset is
// complete, so a document with a complete leading header never has its row
// array scanned.
//
// The reader must already be decompressed. ParseJSON does not close it.
func ParseJSON(r io.Reader) (*Metadata, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	meta := &Metadata{}
	var seen fieldBit

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read member name: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a member name, got %v", keyTok)
		}

		if key == "rows" {
			// Only footer members can still be missing; skip the row
			// array value token-by-token without materializing it.
			if err := skipValue(dec); err != nil {
				return nil, fmt.Errorf("failed to skip rows: %w", err)
			}
			continue
		}

		if err := decodeMember(dec, meta, key, &seen); err != nil {
			return nil, err
		}
		if seen == allRequired {
			return meta, nil
		}
	}

	if seen != allRequired {
		return nil, &MissingMetadataError{Missing: missingNames(seen)}
	}
	return meta, nil
}

// decodeMember decodes one header member into meta and records its presence
// bit. Unknown members are skipped.
func decodeMember(dec *json.Decoder, meta *Metadata, key string, seen *fieldBit) error {
	var target any
	switch key {
	case "datasetJSONCreationDateTime":
		target = &meta.DatasetJSONCreationDateTime
	case "datasetJSONVersion":
		target = &meta.DatasetJSONVersion
	case "fileOID":
		target = &meta.FileOID
	case "dbLastModifiedDateTime":
		target = &meta.DBLastModifiedDateTime
	case "originator":
		target = &meta.Originator
	case "sourceSystem":
		target = &meta.SourceSystem
	case "sourceSystemVersion":
		target = &meta.SourceSystemVersion
	case "studyOID":
		target = &meta.StudyOID
	case "metaDataVersionOID":
		target = &meta.MetaDataVersionOID
	case "metaDataRef":
		target = &meta.MetaDataRef
	case "itemGroupOID":
		target = &meta.ItemGroupOID
	case "records":
		target = &meta.Records
	case "name":
		target = &meta.Name
	case "label":
		target = &meta.Label
	case "columns":
		target = &meta.Columns
	default:
		return skipValue(dec)
	}

	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	if bit, ok := requiredFields[key]; ok {
		*seen |= bit
	}
	return nil
}

// skipValue consumes one JSON value from the decoder, tracking nesting depth
// for arrays and objects.
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

package thinq

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// RawStatus is a normalized status snapshot: vendor field keys mapped to
// their wire values as strings. Produced once per poll and discarded after
// decode.
type RawStatus map[string]string

// RawPayload is an opaque status payload as returned by the gateway.
// Depending on protocol version and device generation the bytes hold a
// JSON object, an XML document, or a byte-packed record.
type RawPayload struct {
	Data []byte
}

// Normalize turns a raw payload into a flat RawStatus. This is the single
// place XML unwrapping and binary unpacking happen; device decoders only
// ever see the normalized map.
func Normalize(payload RawPayload, info *ModelInfo) (RawStatus, error) {
	trimmed := bytes.TrimSpace(payload.Data)
	if len(trimmed) == 0 {
		return RawStatus{}, nil
	}

	switch {
	case trimmed[0] == '{':
		return normalizeJSON(trimmed)
	case trimmed[0] == '<':
		return normalizeXML(trimmed)
	default:
		if info != nil && info.BinaryMonitoring() {
			return info.DecodeBinary(payload.Data)
		}
		return nil, fmt.Errorf("normalize: unrecognized payload format")
	}
}

func normalizeJSON(data []byte) (RawStatus, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("normalize json: %w", err)
	}
	status := make(RawStatus, len(fields))
	for key, value := range fields {
		switch value.(type) {
		case map[string]any, []any:
			// Nested structures stay available verbatim for the
			// generic raw bucket.
			nested, err := json.Marshal(value)
			if err != nil {
				continue
			}
			status[key] = string(nested)
		default:
			status[key] = anyToString(value)
		}
	}
	return status, nil
}

// Legacy device generations wrap status in a flat XML document, one
// element per field under a single root.
func normalizeXML(data []byte) (RawStatus, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	status := make(RawStatus)

	depth := 0
	var current string
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("normalize xml: %w", err)
		}
		switch typed := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = typed.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 && current != "" {
				text.Write(typed)
			}
		case xml.EndElement:
			if depth == 2 && current != "" {
				status[current] = strings.TrimSpace(text.String())
				current = ""
			}
			depth--
		}
	}
	return status, nil
}

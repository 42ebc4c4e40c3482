package thinq

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value entry types found in vendor model schemas.
const (
	ValueEnum      = "Enum"
	ValueRange     = "Range"
	ValueBit       = "Bit"
	ValueReference = "Reference"
	ValueString    = "String"
)

// ModelInfo is the per-model capability schema: which fields exist, what
// their enum codes mean, what ranges and scales numeric fields use, and
// (for legacy devices) how the binary monitor payload is laid out. It is
// immutable for a given model and shared read-only between devices.
type ModelInfo struct {
	ModelName  string
	DeviceType string
	Values     map[string]ModelValue
	Monitoring *Monitoring
}

// ModelValue describes one schema field. Exactly one of the per-type
// sections is populated, selected by Type.
type ModelValue struct {
	Type string

	// Enum
	Options map[string]string

	// Range. Scale is a divisor applied when decoding the wire value
	// (e.g. 10 when the vendor encodes tenths); zero means unscaled.
	Min, Max, Step float64
	Unit           string
	Scale          float64

	// Bit
	Bits []BitField

	// Reference
	Ref string
}

// BitField maps a slice of an option bitmask to a named flag.
type BitField struct {
	Name     string
	StartBit uint
	Length   uint
}

// Monitoring describes how raw monitor payloads are packed.
type Monitoring struct {
	Type     string // "JSON" or "BINARY(BYTE)"
	Protocol []MonitoringField
}

// MonitoringField is one field position in a binary monitor payload.
type MonitoringField struct {
	Value     string
	StartByte int
	Length    int
}

const monitoringBinary = "BINARY(BYTE)"

// ParseModelInfo decodes a vendor model schema document.
func ParseModelInfo(data []byte) (*ModelInfo, error) {
	var doc struct {
		Info struct {
			ModelName  string          `json:"modelName"`
			DeviceType json.RawMessage `json:"deviceType"`
		} `json:"Info"`
		Value map[string]struct {
			Type   string          `json:"type"`
			Option json.RawMessage `json:"option"`
		} `json:"Value"`
		Monitoring *struct {
			Type     string `json:"type"`
			Protocol []struct {
				Value     string `json:"value"`
				StartByte int    `json:"startByte"`
				Length    int    `json:"length"`
			} `json:"protocol"`
		} `json:"Monitoring"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model info: %w", err)
	}

	info := &ModelInfo{
		ModelName:  doc.Info.ModelName,
		DeviceType: rawToString(doc.Info.DeviceType),
		Values:     make(map[string]ModelValue, len(doc.Value)),
	}

	for key, entry := range doc.Value {
		value := ModelValue{Type: entry.Type}
		switch entry.Type {
		case ValueEnum:
			options, err := parseEnumOptions(entry.Option)
			if err != nil {
				return nil, fmt.Errorf("parse model info: field %s: %w", key, err)
			}
			value.Options = options
		case ValueRange:
			var opt struct {
				Min   float64 `json:"min"`
				Max   float64 `json:"max"`
				Step  float64 `json:"step"`
				Unit  string  `json:"unit"`
				Scale float64 `json:"scale"`
			}
			if len(entry.Option) > 0 {
				if err := json.Unmarshal(entry.Option, &opt); err != nil {
					return nil, fmt.Errorf("parse model info: field %s: %w", key, err)
				}
			}
			value.Min, value.Max, value.Step = opt.Min, opt.Max, opt.Step
			value.Unit, value.Scale = opt.Unit, opt.Scale
		case ValueBit:
			var opt []struct {
				Value    string `json:"value"`
				StartBit uint   `json:"startbit"`
				Length   uint   `json:"length"`
			}
			if len(entry.Option) > 0 {
				if err := json.Unmarshal(entry.Option, &opt); err != nil {
					return nil, fmt.Errorf("parse model info: field %s: %w", key, err)
				}
			}
			for _, bit := range opt {
				length := bit.Length
				if length == 0 {
					length = 1
				}
				value.Bits = append(value.Bits, BitField{Name: bit.Value, StartBit: bit.StartBit, Length: length})
			}
		case ValueReference:
			var refs []string
			if len(entry.Option) > 0 {
				if err := json.Unmarshal(entry.Option, &refs); err != nil {
					return nil, fmt.Errorf("parse model info: field %s: %w", key, err)
				}
			}
			if len(refs) > 0 {
				value.Ref = refs[0]
			}
		}
		info.Values[key] = value
	}

	if doc.Monitoring != nil {
		mon := &Monitoring{Type: doc.Monitoring.Type}
		for _, field := range doc.Monitoring.Protocol {
			mon.Protocol = append(mon.Protocol, MonitoringField{
				Value:     field.Value,
				StartByte: field.StartByte,
				Length:    field.Length,
			})
		}
		info.Monitoring = mon
	}

	return info, nil
}

// Enum option maps arrive with either numeric or string keys depending on
// device generation; normalize both to string codes.
func parseEnumOptions(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	options := make(map[string]string, len(generic))
	for code, label := range generic {
		options[code] = anyToString(label)
	}
	return options, nil
}

// EnumLabel resolves an enum code for a field. ok is false when the field
// is not an enum or the code is not in the schema table.
func (m *ModelInfo) EnumLabel(key, code string) (string, bool) {
	value, exists := m.Values[key]
	if !exists || value.Type != ValueEnum {
		return "", false
	}
	label, exists := value.Options[code]
	return label, exists
}

// EnumCode resolves the wire code for an enum label (reverse lookup, used
// when encoding commands).
func (m *ModelInfo) EnumCode(key, label string) (string, bool) {
	value, exists := m.Values[key]
	if !exists || value.Type != ValueEnum {
		return "", false
	}
	for code, candidate := range value.Options {
		if candidate == label {
			return code, true
		}
	}
	return "", false
}

// RangeOf returns the declared range for a numeric field.
func (m *ModelInfo) RangeOf(key string) (ModelValue, bool) {
	value, exists := m.Values[key]
	if !exists || value.Type != ValueRange {
		return ModelValue{}, false
	}
	return value, true
}

// DecodeNumber parses a raw wire value for a numeric field, applying the
// declared scale. Fields without a Range entry decode unscaled.
func (m *ModelInfo) DecodeNumber(key, raw string) (float64, bool) {
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if value, exists := m.RangeOf(key); exists && value.Scale > 0 {
		parsed /= value.Scale
	}
	return parsed, true
}

// EncodeNumber converts a semantic value to its wire form, validating it
// against the declared range first.
func (m *ModelInfo) EncodeNumber(key string, semantic float64) (string, error) {
	value, exists := m.RangeOf(key)
	if !exists {
		return "", fmt.Errorf("field %s has no range entry", key)
	}
	if semantic < value.Min || semantic > value.Max {
		return "", fmt.Errorf("value %v outside range [%v, %v]", semantic, value.Min, value.Max)
	}
	wire := semantic
	if value.Scale > 0 {
		wire *= value.Scale
	}
	return strconv.FormatFloat(wire, 'f', -1, 64), nil
}

// BitFlags expands a bitmask field into named flag values.
func (m *ModelInfo) BitFlags(key, raw string) (map[string]uint64, bool) {
	value, exists := m.Values[key]
	if !exists || value.Type != ValueBit {
		return nil, false
	}
	mask, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	flags := make(map[string]uint64, len(value.Bits))
	for _, bit := range value.Bits {
		flags[bit.Name] = (mask >> bit.StartBit) & ((1 << bit.Length) - 1)
	}
	return flags, true
}

// BinaryMonitoring reports whether monitor payloads for this model are
// byte-packed rather than JSON.
func (m *ModelInfo) BinaryMonitoring() bool {
	return m.Monitoring != nil && m.Monitoring.Type == monitoringBinary
}

// DecodeBinary unpacks a byte-packed monitor payload using the schema's
// monitoring protocol. Fields that run past the payload end are skipped
// rather than failing the whole snapshot.
func (m *ModelInfo) DecodeBinary(data []byte) (RawStatus, error) {
	if !m.BinaryMonitoring() {
		return nil, fmt.Errorf("model %s has no binary monitoring protocol", m.ModelName)
	}
	status := make(RawStatus, len(m.Monitoring.Protocol))
	for _, field := range m.Monitoring.Protocol {
		end := field.StartByte + field.Length
		if field.StartByte < 0 || field.Length <= 0 || end > len(data) {
			continue
		}
		var numeric uint64
		for _, b := range data[field.StartByte:end] {
			numeric = numeric<<8 | uint64(b)
		}
		status[field.Value] = strconv.FormatUint(numeric, 10)
	}
	return status, nil
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func anyToString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// Package devices maps raw gateway snapshots to typed per-appliance
// status values and user intents back to wire commands. Each device type
// is one variant behind the Model interface; adding a type adds a variant,
// not a subclassing layer.
package devices

import (
	"fmt"

	"github.com/homecloud/thinqd/thinq"
)

// Kind names a device model variant.
type Kind string

const (
	KindWasher       Kind = "washer"
	KindRefrigerator Kind = "refrigerator"
	KindAC           Kind = "ac"
	KindDehumidifier Kind = "dehumidifier"
	KindWaterHeater  Kind = "water_heater"
	KindAirPurifier  Kind = "air_purifier"
	KindRange        Kind = "range"
	KindGeneric      Kind = "generic"
)

// Status is a typed, immutable snapshot of one appliance's decoded state.
// A new value is produced per poll; state change is modeled by
// replacement, never mutation.
type Status interface {
	StatusKind() Kind
}

// Model is the capability contract every device variant implements.
// Decode is pure and deterministic; EncodeCommand validates against the
// model schema before any network activity.
type Model interface {
	Kind() Kind
	Descriptor() thinq.DeviceDescriptor
	Info() *thinq.ModelInfo
	Decode(raw thinq.RawStatus) Status
	EncodeCommand(intent Intent) (thinq.Command, error)
}

// Intent is a user-level control request: set an enum field to a label,
// or a numeric field to a semantic (unscaled) value.
type Intent struct {
	Key     string
	Label   string
	Value   float64
	Numeric bool
}

// ValidationErrorKind classifies command validation failures.
type ValidationErrorKind int

const (
	ValidationOutOfRange ValidationErrorKind = iota
	ValidationUnsupportedIntent
)

func (k ValidationErrorKind) String() string {
	if k == ValidationOutOfRange {
		return "out of range"
	}
	return "unsupported intent"
}

// ValidationError rejects an intent before any gateway round trip.
type ValidationError struct {
	Kind    ValidationErrorKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate command %s: %s: %s", e.Field, e.Kind, e.Message)
}

// EnumValue is a decoded enum field. Known is false when the wire code is
// absent from the model schema; the raw code is preserved so new firmware
// values degrade gracefully instead of failing the snapshot.
type EnumValue struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
	Known bool   `json:"known"`
}

func (v EnumValue) String() string {
	if v.Known {
		return v.Label
	}
	if v.Code == "" {
		return "unknown"
	}
	return "unknown(" + v.Code + ")"
}

type base struct {
	desc thinq.DeviceDescriptor
	info *thinq.ModelInfo
}

func (b base) Descriptor() thinq.DeviceDescriptor { return b.desc }
func (b base) Info() *thinq.ModelInfo             { return b.info }

// fieldReader tracks which raw keys a variant consumed so everything else
// lands in the status Extra bucket instead of being dropped.
type fieldReader struct {
	raw  thinq.RawStatus
	info *thinq.ModelInfo
	used map[string]bool
}

func newFieldReader(raw thinq.RawStatus, info *thinq.ModelInfo) *fieldReader {
	return &fieldReader{raw: raw, info: info, used: make(map[string]bool)}
}

// enum decodes an enum field. Snapshots carry either the numeric code or
// the label itself depending on device generation; both resolve.
func (r *fieldReader) enum(key string) EnumValue {
	wire, present := r.raw[key]
	r.used[key] = true
	if !present {
		return EnumValue{}
	}
	if r.info != nil {
		if label, known := r.info.EnumLabel(key, wire); known {
			return EnumValue{Code: wire, Label: label, Known: true}
		}
		if code, known := r.info.EnumCode(key, wire); known {
			return EnumValue{Code: code, Label: wire, Known: true}
		}
	}
	return EnumValue{Code: wire}
}

// number decodes a numeric field, applying the schema's unit scale. Nil
// when the key is absent or unparseable.
func (r *fieldReader) number(key string) *float64 {
	wire, present := r.raw[key]
	r.used[key] = true
	if !present {
		return nil
	}
	if r.info != nil {
		if value, ok := r.info.DecodeNumber(key, wire); ok {
			return &value
		}
		return nil
	}
	var value float64
	if _, err := fmt.Sscanf(wire, "%f", &value); err != nil {
		return nil
	}
	return &value
}

func (r *fieldReader) str(key string) (string, bool) {
	wire, present := r.raw[key]
	r.used[key] = true
	return wire, present
}

// extra returns every raw field no typed accessor consumed.
func (r *fieldReader) extra() thinq.RawStatus {
	extra := make(thinq.RawStatus)
	for key, value := range r.raw {
		if !r.used[key] {
			extra[key] = value
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// combineMinutes folds split hour/minute fields into total minutes.
func combineMinutes(hours, minutes *float64) *int {
	if hours == nil && minutes == nil {
		return nil
	}
	total := 0
	if hours != nil {
		total += int(*hours) * 60
	}
	if minutes != nil {
		total += int(*minutes)
	}
	return &total
}

// encodeIntent validates an intent against the model schema and the
// variant's controllable key set, then produces the wire command.
func encodeIntent(info *thinq.ModelInfo, controllable map[string]bool, intent Intent) (thinq.Command, error) {
	if !controllable[intent.Key] {
		return thinq.Command{}, &ValidationError{
			Kind:    ValidationUnsupportedIntent,
			Field:   intent.Key,
			Message: "field is not controllable on this device type",
		}
	}
	if info == nil {
		return thinq.Command{}, &ValidationError{
			Kind:    ValidationUnsupportedIntent,
			Field:   intent.Key,
			Message: "no model schema available",
		}
	}

	entry, exists := info.Values[intent.Key]
	if !exists {
		return thinq.Command{}, &ValidationError{
			Kind:    ValidationUnsupportedIntent,
			Field:   intent.Key,
			Message: "field not present in model schema",
		}
	}

	switch entry.Type {
	case thinq.ValueEnum:
		if intent.Numeric {
			return thinq.Command{}, &ValidationError{
				Kind:    ValidationUnsupportedIntent,
				Field:   intent.Key,
				Message: "enum field takes a label, not a number",
			}
		}
		code, exists := info.EnumCode(intent.Key, intent.Label)
		if !exists {
			return thinq.Command{}, &ValidationError{
				Kind:    ValidationOutOfRange,
				Field:   intent.Key,
				Message: fmt.Sprintf("label %q not in enum table", intent.Label),
			}
		}
		return thinq.Command{Key: intent.Key, Value: code}, nil
	case thinq.ValueRange:
		if !intent.Numeric {
			return thinq.Command{}, &ValidationError{
				Kind:    ValidationUnsupportedIntent,
				Field:   intent.Key,
				Message: "range field takes a number",
			}
		}
		wire, err := info.EncodeNumber(intent.Key, intent.Value)
		if err != nil {
			return thinq.Command{}, &ValidationError{
				Kind:    ValidationOutOfRange,
				Field:   intent.Key,
				Message: err.Error(),
			}
		}
		return thinq.Command{Key: intent.Key, Value: wire}, nil
	default:
		return thinq.Command{}, &ValidationError{
			Kind:    ValidationUnsupportedIntent,
			Field:   intent.Key,
			Message: "field type " + entry.Type + " is not controllable",
		}
	}
}

package devices

import "github.com/homecloud/thinqd/thinq"

// Range covers ovens/ranges. The vendor exposes this family read-only, so
// every intent is rejected before reaching the network.
type Range struct {
	base
}

func NewRange(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *Range {
	return &Range{base{desc: desc, info: info}}
}

func (r *Range) Kind() Kind { return KindRange }

type RangeStatus struct {
	UpperOvenState  EnumValue       `json:"upper_oven_state"`
	LowerOvenState  EnumValue       `json:"lower_oven_state"`
	UpperTargetTemp *float64        `json:"upper_target_temp,omitempty"`
	LowerTargetTemp *float64        `json:"lower_target_temp,omitempty"`
	Extra           thinq.RawStatus `json:"extra,omitempty"`
}

func (RangeStatus) StatusKind() Kind { return KindRange }

func (r *Range) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, r.info)
	status := RangeStatus{
		UpperOvenState:  reader.enum("UpperOvenState"),
		LowerOvenState:  reader.enum("LowerOvenState"),
		UpperTargetTemp: reader.number("UpperTargetTemp"),
		LowerTargetTemp: reader.number("LowerTargetTemp"),
	}
	status.Extra = reader.extra()
	return status
}

func (r *Range) EncodeCommand(intent Intent) (thinq.Command, error) {
	return thinq.Command{}, &ValidationError{
		Kind:    ValidationUnsupportedIntent,
		Field:   intent.Key,
		Message: "oven family is read-only",
	}
}

package devices

import "github.com/homecloud/thinqd/thinq"

// AC is the climate family (air conditioners and combo climate units).
type AC struct {
	base
}

func NewAC(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *AC {
	return &AC{base{desc: desc, info: info}}
}

func (a *AC) Kind() Kind { return KindAC }

// ACStatus is one decoded climate snapshot. Temperatures are in the
// unit and scale the model schema declares.
type ACStatus struct {
	Power       EnumValue       `json:"power"`
	Mode        EnumValue       `json:"mode"`
	FanSpeed    EnumValue       `json:"fan_speed"`
	CurrentTemp *float64        `json:"current_temp,omitempty"`
	TargetTemp  *float64        `json:"target_temp,omitempty"`
	Extra       thinq.RawStatus `json:"extra,omitempty"`
}

func (ACStatus) StatusKind() Kind { return KindAC }

func (a *AC) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, a.info)
	status := ACStatus{
		Power:       reader.enum("Operation"),
		Mode:        reader.enum("OpMode"),
		FanSpeed:    reader.enum("WindStrength"),
		CurrentTemp: reader.number("TempCur"),
		TargetTemp:  reader.number("TempCfg"),
	}
	status.Extra = reader.extra()
	return status
}

var acControls = map[string]bool{
	"Operation":    true,
	"OpMode":       true,
	"TempCfg":      true,
	"WindStrength": true,
}

func (a *AC) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(a.info, acControls, intent)
}

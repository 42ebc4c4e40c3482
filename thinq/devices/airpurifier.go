package devices

import "github.com/homecloud/thinqd/thinq"

// AirPurifier covers air purifiers and standalone fans; both report
// through the air-quality status vocabulary.
type AirPurifier struct {
	base
}

func NewAirPurifier(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *AirPurifier {
	return &AirPurifier{base{desc: desc, info: info}}
}

func (a *AirPurifier) Kind() Kind { return KindAirPurifier }

type AirPurifierStatus struct {
	Power               EnumValue       `json:"power"`
	Mode                EnumValue       `json:"mode"`
	FanSpeed            EnumValue       `json:"fan_speed"`
	PM1                 *float64        `json:"pm1,omitempty"`
	PM25                *float64        `json:"pm25,omitempty"`
	PM10                *float64        `json:"pm10,omitempty"`
	FilterRemainPercent *float64        `json:"filter_remain_percent,omitempty"`
	Extra               thinq.RawStatus `json:"extra,omitempty"`
}

func (AirPurifierStatus) StatusKind() Kind { return KindAirPurifier }

func (a *AirPurifier) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, a.info)
	status := AirPurifierStatus{
		Power:               reader.enum("Operation"),
		Mode:                reader.enum("OpMode"),
		FanSpeed:            reader.enum("WindStrength"),
		PM1:                 reader.number("SensorPM1"),
		PM25:                reader.number("SensorPM2"),
		PM10:                reader.number("SensorPM10"),
		FilterRemainPercent: reader.number("FilterRemain"),
	}
	status.Extra = reader.extra()
	return status
}

var airPurifierControls = map[string]bool{
	"Operation":    true,
	"OpMode":       true,
	"WindStrength": true,
}

func (a *AirPurifier) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(a.info, airPurifierControls, intent)
}

package devices

import "github.com/homecloud/thinqd/thinq"

type Dehumidifier struct {
	base
}

func NewDehumidifier(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *Dehumidifier {
	return &Dehumidifier{base{desc: desc, info: info}}
}

func (d *Dehumidifier) Kind() Kind { return KindDehumidifier }

type DehumidifierStatus struct {
	Power           EnumValue       `json:"power"`
	Mode            EnumValue       `json:"mode"`
	FanSpeed        EnumValue       `json:"fan_speed"`
	CurrentHumidity *float64        `json:"current_humidity,omitempty"`
	TargetHumidity  *float64        `json:"target_humidity,omitempty"`
	TankFull        EnumValue       `json:"tank_full"`
	Extra           thinq.RawStatus `json:"extra,omitempty"`
}

func (DehumidifierStatus) StatusKind() Kind { return KindDehumidifier }

func (d *Dehumidifier) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, d.info)
	status := DehumidifierStatus{
		Power:           reader.enum("Operation"),
		Mode:            reader.enum("OpMode"),
		FanSpeed:        reader.enum("WindStrength"),
		CurrentHumidity: reader.number("SensorHumidity"),
		TargetHumidity:  reader.number("HumidityCfg"),
		TankFull:        reader.enum("WaterFull"),
	}
	status.Extra = reader.extra()
	return status
}

var dehumidifierControls = map[string]bool{
	"Operation":    true,
	"OpMode":       true,
	"HumidityCfg":  true,
	"WindStrength": true,
}

func (d *Dehumidifier) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(d.info, dehumidifierControls, intent)
}

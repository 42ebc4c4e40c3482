package devices

import "github.com/homecloud/thinqd/thinq"

type WaterHeater struct {
	base
}

func NewWaterHeater(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *WaterHeater {
	return &WaterHeater{base{desc: desc, info: info}}
}

func (w *WaterHeater) Kind() Kind { return KindWaterHeater }

type WaterHeaterStatus struct {
	Mode        EnumValue       `json:"mode"`
	CurrentTemp *float64        `json:"current_temp,omitempty"`
	TargetTemp  *float64        `json:"target_temp,omitempty"`
	Extra       thinq.RawStatus `json:"extra,omitempty"`
}

func (WaterHeaterStatus) StatusKind() Kind { return KindWaterHeater }

func (w *WaterHeater) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, w.info)
	status := WaterHeaterStatus{
		Mode:        reader.enum("OpMode"),
		CurrentTemp: reader.number("TempCur"),
		TargetTemp:  reader.number("TempCfg"),
	}
	status.Extra = reader.extra()
	return status
}

var waterHeaterControls = map[string]bool{
	"OpMode":  true,
	"TempCfg": true,
}

func (w *WaterHeater) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(w.info, waterHeaterControls, intent)
}

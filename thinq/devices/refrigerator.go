package devices

import "github.com/homecloud/thinqd/thinq"

type Refrigerator struct {
	base
}

func NewRefrigerator(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *Refrigerator {
	return &Refrigerator{base{desc: desc, info: info}}
}

func (r *Refrigerator) Kind() Kind { return KindRefrigerator }

type RefrigeratorStatus struct {
	FridgeTemp  *float64        `json:"fridge_temp,omitempty"`
	FreezerTemp *float64        `json:"freezer_temp,omitempty"`
	IcePlus     EnumValue       `json:"ice_plus"`
	EcoMode     EnumValue       `json:"eco_mode"`
	DoorOpen    EnumValue       `json:"door_open"`
	Extra       thinq.RawStatus `json:"extra,omitempty"`
}

func (RefrigeratorStatus) StatusKind() Kind { return KindRefrigerator }

func (r *Refrigerator) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, r.info)
	status := RefrigeratorStatus{
		FridgeTemp:  reader.number("TempRefrigerator"),
		FreezerTemp: reader.number("TempFreezer"),
		IcePlus:     reader.enum("IcePlus"),
		EcoMode:     reader.enum("EcoFriendly"),
		DoorOpen:    reader.enum("DoorOpenState"),
	}
	status.Extra = reader.extra()
	return status
}

var refrigeratorControls = map[string]bool{
	"TempRefrigerator": true,
	"TempFreezer":      true,
	"IcePlus":          true,
}

func (r *Refrigerator) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(r.info, refrigeratorControls, intent)
}

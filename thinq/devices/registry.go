package devices

import (
	"context"
	"log"

	"github.com/homecloud/thinqd/thinq"
)

// Vendor device type codes.
const (
	typeRefrigerator       = 101
	typeKimchiRefrigerator = 102
	typeWasher             = 201
	typeDryer              = 202
	typeStyler             = 203
	typeOven               = 301
	typeAC                 = 401
	typeAirPurifier        = 402
	typeDehumidifier       = 403
	typeFan                = 405
	typeWaterHeater        = 504
)

// KindForTypeCode maps a vendor device type code to its model variant.
func KindForTypeCode(code int) Kind {
	switch code {
	case typeRefrigerator, typeKimchiRefrigerator:
		return KindRefrigerator
	case typeWasher, typeDryer, typeStyler:
		return KindWasher
	case typeOven:
		return KindRange
	case typeAC:
		return KindAC
	case typeAirPurifier, typeFan:
		return KindAirPurifier
	case typeDehumidifier:
		return KindDehumidifier
	case typeWaterHeater:
		return KindWaterHeater
	default:
		return KindGeneric
	}
}

// New constructs the model variant for a descriptor. info may be nil (no
// schema available); decoding then falls back to untyped values.
func New(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) Model {
	switch KindForTypeCode(desc.DeviceTypeCode) {
	case KindRefrigerator:
		return NewRefrigerator(desc, info)
	case KindWasher:
		return NewWasher(desc, info)
	case KindRange:
		return NewRange(desc, info)
	case KindAC:
		return NewAC(desc, info)
	case KindAirPurifier:
		return NewAirPurifier(desc, info)
	case KindDehumidifier:
		return NewDehumidifier(desc, info)
	case KindWaterHeater:
		return NewWaterHeater(desc, info)
	default:
		return NewGeneric(desc, info)
	}
}

// Registry enumerates the account's devices and builds a typed model per
// appliance.
type Registry struct {
	client *thinq.Client
}

func NewRegistry(client *thinq.Client) *Registry {
	return &Registry{client: client}
}

// Discover lists the account's devices and loads each model schema. A
// schema fetch failure degrades that one device to the generic model; it
// never fails discovery for the rest.
func (r *Registry) Discover(ctx context.Context) (map[string]Model, error) {
	descriptors, err := r.client.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	models := make(map[string]Model, len(descriptors))
	for _, desc := range descriptors {
		info, err := r.client.FetchModelInfo(ctx, desc.ModelInfoRef)
		if err != nil {
			log.Printf("thinq: model info for %s (%s): %v; using raw fields", desc.DeviceID, desc.ModelName, err)
			models[desc.DeviceID] = NewGeneric(desc, nil)
			continue
		}
		models[desc.DeviceID] = New(desc, info)
	}
	return models, nil
}

package devices

import "github.com/homecloud/thinqd/thinq"

// Generic is the fallback for unrecognized device type codes: it exposes
// every raw field untyped so an unsupported appliance still yields data
// instead of failing discovery.
type Generic struct {
	base
}

func NewGeneric(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *Generic {
	return &Generic{base{desc: desc, info: info}}
}

func (g *Generic) Kind() Kind { return KindGeneric }

type GenericStatus struct {
	Fields thinq.RawStatus `json:"fields"`
}

func (GenericStatus) StatusKind() Kind { return KindGeneric }

func (g *Generic) Decode(raw thinq.RawStatus) Status {
	fields := make(thinq.RawStatus, len(raw))
	for key, value := range raw {
		fields[key] = value
	}
	return GenericStatus{Fields: fields}
}

func (g *Generic) EncodeCommand(intent Intent) (thinq.Command, error) {
	return thinq.Command{}, &ValidationError{
		Kind:    ValidationUnsupportedIntent,
		Field:   intent.Key,
		Message: "generic devices are read-only",
	}
}

package devices

import "github.com/homecloud/thinqd/thinq"

// Washer covers the laundry family (washer, dryer, styler); the vendor
// uses the same status vocabulary for all three.
type Washer struct {
	base
}

func NewWasher(desc thinq.DeviceDescriptor, info *thinq.ModelInfo) *Washer {
	return &Washer{base{desc: desc, info: info}}
}

func (w *Washer) Kind() Kind { return KindWasher }

// WasherStatus is one decoded laundry snapshot.
type WasherStatus struct {
	RunState         EnumValue       `json:"run_state"`
	PreviousState    EnumValue       `json:"previous_state"`
	Course           EnumValue       `json:"course"`
	RemainingMinutes *int            `json:"remaining_minutes,omitempty"`
	InitialMinutes   *int            `json:"initial_minutes,omitempty"`
	Error            *string         `json:"error,omitempty"`
	Extra            thinq.RawStatus `json:"extra,omitempty"`
}

func (WasherStatus) StatusKind() Kind { return KindWasher }

// The no-error code on this family.
const washerNoError = "0"

func (w *Washer) Decode(raw thinq.RawStatus) Status {
	reader := newFieldReader(raw, w.info)
	status := WasherStatus{
		RunState:      reader.enum("State"),
		PreviousState: reader.enum("PreState"),
		Course:        reader.enum("Course"),
		RemainingMinutes: combineMinutes(
			reader.number("Remain_Time_H"),
			reader.number("Remain_Time_M"),
		),
		InitialMinutes: combineMinutes(
			reader.number("Initial_Time_H"),
			reader.number("Initial_Time_M"),
		),
	}

	if code, present := reader.str("Error"); present && code != washerNoError {
		errValue := code
		if w.info != nil {
			if label, known := w.info.EnumLabel("Error", code); known {
				errValue = label
			}
		}
		status.Error = &errValue
	}

	status.Extra = reader.extra()
	return status
}

var washerControls = map[string]bool{
	"Operation": true,
}

func (w *Washer) EncodeCommand(intent Intent) (thinq.Command, error) {
	return encodeIntent(w.info, washerControls, intent)
}

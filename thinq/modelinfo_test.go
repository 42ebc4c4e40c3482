package thinq

import (
	"testing"
)

const washerModelJSON = `{
	"Info": {"modelName": "F4V9RWP2E", "deviceType": 201},
	"Value": {
		"State": {"type": "Enum", "option": {"0": "POWEROFF", "1": "INITIAL", "3": "RUNNING"}},
		"TempCfg": {"type": "Range", "option": {"min": 18, "max": 30, "step": 0.5, "unit": "C", "scale": 10}},
		"Option1": {"type": "Bit", "option": [
			{"value": "ChildLock", "startbit": 0, "length": 1},
			{"value": "Steam", "startbit": 1, "length": 1}
		]},
		"Course": {"type": "Reference", "option": ["Course_FL24"]}
	},
	"Monitoring": {
		"type": "BINARY(BYTE)",
		"protocol": [
			{"value": "State", "startByte": 0, "length": 1},
			{"value": "Remain_Time_M", "startByte": 1, "length": 1},
			{"value": "Reserve_Time", "startByte": 2, "length": 2}
		]
	}
}`

func parseFixture(t *testing.T) *ModelInfo {
	t.Helper()
	info, err := ParseModelInfo([]byte(washerModelJSON))
	if err != nil {
		t.Fatalf("parse model info: %v", err)
	}
	return info
}

func TestParseModelInfo(t *testing.T) {
	info := parseFixture(t)

	if info.ModelName != "F4V9RWP2E" {
		t.Fatalf("model name: %q", info.ModelName)
	}
	if info.DeviceType != "201" {
		t.Fatalf("numeric device type must normalize to string, got %q", info.DeviceType)
	}
	if len(info.Values) != 4 {
		t.Fatalf("expected 4 value entries, got %d", len(info.Values))
	}
	if ref := info.Values["Course"].Ref; ref != "Course_FL24" {
		t.Fatalf("reference entry: %q", ref)
	}
}

func TestEnumLookup(t *testing.T) {
	info := parseFixture(t)

	label, ok := info.EnumLabel("State", "3")
	if !ok || label != "RUNNING" {
		t.Fatalf("EnumLabel(State, 3) = %q, %v", label, ok)
	}
	if _, ok := info.EnumLabel("State", "99"); ok {
		t.Fatal("unknown code must not resolve")
	}
	if _, ok := info.EnumLabel("TempCfg", "1"); ok {
		t.Fatal("non-enum fields must not resolve")
	}

	code, ok := info.EnumCode("State", "POWEROFF")
	if !ok || code != "0" {
		t.Fatalf("EnumCode(State, POWEROFF) = %q, %v", code, ok)
	}
}

func TestScaledNumbers(t *testing.T) {
	info := parseFixture(t)

	// Wire value 215 with a scale divisor of 10 is 21.5 degrees.
	value, ok := info.DecodeNumber("TempCfg", "215")
	if !ok || value != 21.5 {
		t.Fatalf("DecodeNumber = %v, %v", value, ok)
	}

	wire, err := info.EncodeNumber("TempCfg", 21.5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if wire != "215" {
		t.Fatalf("expected wire value 215, got %q", wire)
	}

	if _, err := info.EncodeNumber("TempCfg", 35); err == nil {
		t.Fatal("out-of-range value must be rejected")
	}
	if _, err := info.EncodeNumber("State", 1); err == nil {
		t.Fatal("non-range fields cannot encode numbers")
	}
}

func TestBitFlags(t *testing.T) {
	info := parseFixture(t)

	flags, ok := info.BitFlags("Option1", "3")
	if !ok {
		t.Fatal("expected bit expansion")
	}
	if flags["ChildLock"] != 1 || flags["Steam"] != 1 {
		t.Fatalf("flags: %+v", flags)
	}

	flags, _ = info.BitFlags("Option1", "2")
	if flags["ChildLock"] != 0 || flags["Steam"] != 1 {
		t.Fatalf("flags: %+v", flags)
	}
}

func TestDecodeBinary(t *testing.T) {
	info := parseFixture(t)

	if !info.BinaryMonitoring() {
		t.Fatal("fixture declares binary monitoring")
	}

	status, err := info.DecodeBinary([]byte{0x03, 0x23, 0x01, 0x2c})
	if err != nil {
		t.Fatalf("decode binary: %v", err)
	}
	if status["State"] != "3" {
		t.Fatalf("State = %q", status["State"])
	}
	if status["Remain_Time_M"] != "35" {
		t.Fatalf("Remain_Time_M = %q", status["Remain_Time_M"])
	}
	// Two-byte field is big-endian: 0x012c = 300.
	if status["Reserve_Time"] != "300" {
		t.Fatalf("Reserve_Time = %q", status["Reserve_Time"])
	}
}

func TestDecodeBinaryShortPayload(t *testing.T) {
	info := parseFixture(t)

	// Payload shorter than the protocol: trailing fields are skipped, the
	// snapshot is not failed.
	status, err := info.DecodeBinary([]byte{0x01})
	if err != nil {
		t.Fatalf("decode binary: %v", err)
	}
	if status["State"] != "1" {
		t.Fatalf("State = %q", status["State"])
	}
	if _, exists := status["Reserve_Time"]; exists {
		t.Fatal("out-of-bounds field must be absent")
	}
}

func TestDecodeBinaryBadFieldPositions(t *testing.T) {
	// Malformed schema entries (negative offsets, zero lengths) are
	// skipped like out-of-bounds ones; they must never fail or panic
	// the snapshot.
	info, err := ParseModelInfo([]byte(`{
		"Info": {"modelName": "F4V9RWP2E", "deviceType": 201},
		"Value": {},
		"Monitoring": {
			"type": "BINARY(BYTE)",
			"protocol": [
				{"value": "Negative", "startByte": -2, "length": 1},
				{"value": "ZeroLength", "startByte": 1, "length": 0},
				{"value": "State", "startByte": 0, "length": 1}
			]
		}
	}`))
	if err != nil {
		t.Fatalf("parse model info: %v", err)
	}

	status, err := info.DecodeBinary([]byte{0x03, 0x23, 0x01, 0x2c})
	if err != nil {
		t.Fatalf("decode binary: %v", err)
	}
	if status["State"] != "3" {
		t.Fatalf("State = %q", status["State"])
	}
	for _, key := range []string{"Negative", "ZeroLength"} {
		if _, exists := status[key]; exists {
			t.Fatalf("malformed field %s must be absent", key)
		}
	}
}

package thinq

import "testing"

func TestNormalizeJSON(t *testing.T) {
	payload := RawPayload{Data: []byte(`{"State":"RUNNING","Remain_Time_M":35,"Standby":true,"courseInfo":{"id":7}}`)}

	status, err := Normalize(payload, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if status["State"] != "RUNNING" {
		t.Fatalf("State = %q", status["State"])
	}
	if status["Remain_Time_M"] != "35" {
		t.Fatalf("numbers must flatten to strings, got %q", status["Remain_Time_M"])
	}
	if status["Standby"] != "true" {
		t.Fatalf("bools must flatten to strings, got %q", status["Standby"])
	}
	if status["courseInfo"] != `{"id":7}` {
		t.Fatalf("nested objects stay as verbatim json, got %q", status["courseInfo"])
	}
}

func TestNormalizeXML(t *testing.T) {
	payload := RawPayload{Data: []byte(`<?xml version="1.0"?>
<Monitoring>
  <State>RUNNING</State>
  <Remain_Time_M>35</Remain_Time_M>
</Monitoring>`)}

	status, err := Normalize(payload, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if status["State"] != "RUNNING" || status["Remain_Time_M"] != "35" {
		t.Fatalf("status: %+v", status)
	}
}

func TestNormalizeBinary(t *testing.T) {
	info := parseFixture(t)
	payload := RawPayload{Data: []byte{0x03, 0x23, 0x01, 0x2c}}

	status, err := Normalize(payload, info)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if status["State"] != "3" {
		t.Fatalf("State = %q", status["State"])
	}
}

func TestNormalizeUnknownFormat(t *testing.T) {
	// Binary bytes without a binary monitoring protocol cannot be decoded.
	if _, err := Normalize(RawPayload{Data: []byte{0x01, 0x02}}, nil); err == nil {
		t.Fatal("expected an error for undecodable payload")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	status, err := Normalize(RawPayload{}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(status) != 0 {
		t.Fatalf("expected empty status, got %+v", status)
	}
}

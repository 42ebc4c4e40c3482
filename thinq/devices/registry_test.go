package devices

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/homecloud/thinqd/thinq"
)

func TestKindForTypeCode(t *testing.T) {
	cases := map[int]Kind{
		101: KindRefrigerator,
		201: KindWasher,
		202: KindWasher,
		203: KindWasher,
		301: KindRange,
		401: KindAC,
		402: KindAirPurifier,
		403: KindDehumidifier,
		405: KindAirPurifier,
		504: KindWaterHeater,
		999: KindGeneric,
	}
	for code, want := range cases {
		if got := KindForTypeCode(code); got != want {
			t.Fatalf("KindForTypeCode(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestNewVariantSelection(t *testing.T) {
	model := New(thinq.DeviceDescriptor{DeviceID: "x", DeviceTypeCode: 401}, nil)
	if model.Kind() != KindAC {
		t.Fatalf("expected ac variant, got %s", model.Kind())
	}

	model = New(thinq.DeviceDescriptor{DeviceID: "y", DeviceTypeCode: 777}, nil)
	if model.Kind() != KindGeneric {
		t.Fatalf("unknown type codes map to generic, got %s", model.Kind())
	}
}

func TestDiscoverIsolatesSchemaFailures(t *testing.T) {
	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/service/application/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"resultCode":"0000","result":{"item":[
			{"deviceId":"washer-1","deviceType":201,"alias":"Washer","modelJsonUri":"`+server.URL+`/models/washer.json"},
			{"deviceId":"ac-1","deviceType":401,"alias":"AC","modelJsonUri":"`+server.URL+`/models/broken.json"}
		]}}`)
	})
	mux.HandleFunc("/models/washer.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Info":{"modelName":"F4V9","deviceType":201},"Value":{"State":{"type":"Enum","option":{"3":"RUNNING"}}}}`)
	})
	mux.HandleFunc("/models/broken.json", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	manager := thinq.NewAuthManager(thinq.AuthConfig{
		Endpoints:  thinq.Endpoints{AuthBase: server.URL, V2Base: server.URL, V1Base: server.URL},
		Country:    "US",
		Language:   "en-US",
		HTTPClient: server.Client(),
	})
	manager.Restore(thinq.Session{
		AccessToken:    "at-1",
		TokenExpiry:    time.Now().Add(time.Hour),
		GatewayBaseURL: server.URL,
		AuthBaseURL:    server.URL,
		Version:        thinq.V2,
		Country:        "US",
		Language:       "en-US",
	})
	client := thinq.NewClient(manager, thinq.WithHTTPClient(server.Client()))

	models, err := NewRegistry(client).Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected both devices despite one schema failure, got %d", len(models))
	}
	if models["washer-1"].Kind() != KindWasher {
		t.Fatalf("washer kind: %s", models["washer-1"].Kind())
	}
	if models["washer-1"].Info() == nil {
		t.Fatal("washer should carry its schema")
	}
	if models["ac-1"].Kind() != KindGeneric {
		t.Fatalf("schema failure must degrade to generic, got %s", models["ac-1"].Kind())
	}
	if models["ac-1"].Info() != nil {
		t.Fatal("degraded device carries no schema")
	}
}

func TestGenericDecodeKeepsEverything(t *testing.T) {
	generic := NewGeneric(thinq.DeviceDescriptor{DeviceID: "g-1", DeviceTypeCode: 999}, nil)

	status := generic.Decode(thinq.RawStatus{"A": "1", "B": "two"}).(GenericStatus)
	if status.Fields["A"] != "1" || status.Fields["B"] != "two" {
		t.Fatalf("fields: %+v", status.Fields)
	}

	if _, err := generic.EncodeCommand(Intent{Key: "A", Label: "x"}); err == nil {
		t.Fatal("generic devices are read-only")
	}
}

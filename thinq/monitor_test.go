package thinq

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// v1MonitorServer fakes the v1 rti endpoints with scriptable poll results.
type v1MonitorServer struct {
	starts  int
	stops   int
	results []v1Work
}

func (s *v1MonitorServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rti/rtiMon", func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Root struct {
				CmdOpt string `json:"cmdOpt"`
				WorkID string `json:"workId"`
			} `json:"lgedmRoot"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode rtiMon request: %v", err)
		}
		switch envelope.Root.CmdOpt {
		case "Start":
			s.starts++
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"lgedmRoot":{"returnCd":"0000","workId":"work-%d"}}`, s.starts)
		case "Stop":
			s.stops++
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"lgedmRoot":{"returnCd":"0000"}}`)
		default:
			t.Fatalf("unexpected cmdOpt %q", envelope.Root.CmdOpt)
		}
	})
	mux.HandleFunc("/rti/rtiResult", func(w http.ResponseWriter, _ *http.Request) {
		if len(s.results) == 0 {
			t.Fatal("unexpected poll: no scripted results left")
		}
		work := s.results[0]
		s.results = s.results[1:]

		data, err := json.Marshal(map[string]any{
			"lgedmRoot": map[string]any{
				"returnCd": "0000",
				"workList": []v1Work{work},
			},
		})
		if err != nil {
			t.Fatalf("marshal poll result: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	return mux
}

func encodePayload(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestMonitorStartIdempotent(t *testing.T) {
	fake := &v1MonitorServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	monitor := NewMonitor(testClientV1(server))
	ctx := context.Background()

	first, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first != second {
		t.Fatal("second start must return the existing session")
	}
	if fake.starts != 1 {
		t.Fatalf("expected one vendor-side start, got %d", fake.starts)
	}
}

func TestMonitorPollFlow(t *testing.T) {
	fake := &v1MonitorServer{
		results: []v1Work{
			{DeviceID: "dev-1", WorkID: "work-1", ReturnCode: "0000", ReturnData: encodePayload(`{"State":"RUNNING"}`)},
			{DeviceID: "dev-1", WorkID: "work-1", ReturnCode: "0000"},
		},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	monitor := NewMonitor(testClientV1(server))
	ctx := context.Background()

	session, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	payload, err := monitor.Poll(ctx, session)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	status, err := Normalize(payload, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if status["State"] != "RUNNING" {
		t.Fatalf("expected State RUNNING, got %+v", status)
	}
	if session.LastPollAt.IsZero() {
		t.Fatal("poll must stamp LastPollAt")
	}

	// Empty returnData means no fresh snapshot this window.
	if _, err := monitor.Poll(ctx, session); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestMonitorPollNotStarted(t *testing.T) {
	fake := &v1MonitorServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	monitor := NewMonitor(testClientV1(server))
	ctx := context.Background()

	if _, err := monitor.Poll(ctx, nil); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted for nil session, got %v", err)
	}

	stale := &MonitorSession{DeviceID: "dev-1", WorkID: "work-0"}
	if _, err := monitor.Poll(ctx, stale); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted for unregistered session, got %v", err)
	}
}

func TestMonitorRestartsExpiredHandle(t *testing.T) {
	fake := &v1MonitorServer{
		results: []v1Work{
			{DeviceID: "dev-1", WorkID: "work-1", ReturnCode: "0010"},
			{DeviceID: "dev-1", WorkID: "work-2", ReturnCode: "0000", ReturnData: encodePayload(`{"State":"RUNNING"}`)},
		},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	monitor := NewMonitor(testClientV1(server))
	ctx := context.Background()

	session, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	payload, err := monitor.Poll(ctx, session)
	if err != nil {
		t.Fatalf("poll after expiry must restart transparently: %v", err)
	}
	if len(payload.Data) == 0 {
		t.Fatal("expected payload from the restarted handle")
	}
	if fake.starts != 2 {
		t.Fatalf("expected a second vendor-side start, got %d", fake.starts)
	}
	if session.WorkID != "work-2" {
		t.Fatalf("expected refreshed work id, got %q", session.WorkID)
	}
}

func TestMonitorStopTwice(t *testing.T) {
	fake := &v1MonitorServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	monitor := NewMonitor(testClientV1(server))
	ctx := context.Background()

	session, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := monitor.Stop(ctx, "dev-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := monitor.Stop(ctx, "dev-1"); err != nil {
		t.Fatalf("second stop must be a no-op: %v", err)
	}
	if fake.stops != 1 {
		t.Fatalf("expected one vendor-side stop, got %d", fake.stops)
	}

	if _, err := monitor.Poll(ctx, session); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("poll after stop must fail with ErrNotStarted, got %v", err)
	}
}

func TestMonitorV2SyntheticHandle(t *testing.T) {
	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/service/devices/dev-1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"resultCode":"0000","result":{"snapshot":{"airState.operation":1}}}`)
	})

	monitor := NewMonitor(testClient(server))
	ctx := context.Background()

	session, err := monitor.Start(ctx, "dev-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	payload, err := monitor.Poll(ctx, session)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	status, err := Normalize(payload, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if status["airState.operation"] != "1" {
		t.Fatalf("expected dashboard snapshot fields, got %+v", status)
	}
}

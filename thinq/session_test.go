package thinq

import (
	"testing"
	"time"
)

func TestSessionFlatKVRoundTrip(t *testing.T) {
	expiry := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	original := Session{
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		TokenExpiry:    expiry,
		GatewayBaseURL: "https://gateway.example.com/v1",
		AuthBaseURL:    "https://account.example.com",
		Version:        V2,
		Country:        "US",
		Language:       "en-US",
	}

	restored, err := SessionFromKV(original.FlatKV())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != original {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", restored, original)
	}
}

func TestSessionFlatKVV1NoExpiry(t *testing.T) {
	original := Session{
		AccessToken:    "jsession-id",
		RefreshToken:   "login-token",
		GatewayBaseURL: "https://gateway.example.com/api",
		AuthBaseURL:    "https://account.example.com",
		Version:        V1,
		Country:        "KR",
		Language:       "ko-KR",
	}

	kv := original.FlatKV()
	if _, exists := kv["token_expiry"]; exists {
		t.Fatalf("expected no token_expiry key for zero expiry, got %q", kv["token_expiry"])
	}

	restored, err := SessionFromKV(kv)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != original {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", restored, original)
	}
}

func TestSessionFromKVMissingFields(t *testing.T) {
	_, err := SessionFromKV(map[string]string{
		"protocol_version": "v2",
		"gateway_base_url": "https://gateway.example.com",
	})
	if err == nil {
		t.Fatal("expected error for missing access token")
	}

	_, err = SessionFromKV(map[string]string{
		"protocol_version": "v3",
		"access_token":     "x",
		"gateway_base_url": "https://gateway.example.com",
	})
	if err == nil {
		t.Fatal("expected error for unknown protocol version")
	}
}

func TestSessionExpired(t *testing.T) {
	session := Session{TokenExpiry: time.Now().Add(time.Hour)}
	if session.Expired(30 * time.Second) {
		t.Fatal("token an hour from expiry should not be stale")
	}

	session.TokenExpiry = time.Now().Add(10 * time.Second)
	if !session.Expired(30 * time.Second) {
		t.Fatal("token inside the skew window should be stale")
	}

	session.TokenExpiry = time.Time{}
	if session.Expired(30 * time.Second) {
		t.Fatal("sessions without an expiry never go stale")
	}
}

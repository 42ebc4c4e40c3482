package thinq

import (
	"fmt"
	"time"
)

// ProtocolVersion selects between the two incompatible gateway conventions.
type ProtocolVersion int

const (
	V1 ProtocolVersion = iota + 1
	V2
)

func (v ProtocolVersion) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// ParseProtocolVersion parses the persisted form produced by String.
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	switch s {
	case "v1":
		return V1, nil
	case "v2":
		return V2, nil
	default:
		return 0, fmt.Errorf("unknown protocol version %q", s)
	}
}

// Session is one authenticated user's gateway context. It is a value:
// login and refresh replace the whole session rather than mutating it.
type Session struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
	GatewayBaseURL string
	AuthBaseURL    string
	Version        ProtocolVersion
	Country        string
	Language       string
}

// Expired reports whether the access token is past (or within skew of)
// its expiry.
func (s Session) Expired(skew time.Duration) bool {
	if s.TokenExpiry.IsZero() {
		return false
	}
	return time.Until(s.TokenExpiry) <= skew
}

// Flat key-value layout used for host-side persistence.
const (
	kvAccessToken  = "access_token"
	kvRefreshToken = "refresh_token"
	kvTokenExpiry  = "token_expiry"
	kvGatewayURL   = "gateway_base_url"
	kvAuthURL      = "auth_base_url"
	kvVersion      = "protocol_version"
	kvCountry      = "country"
	kvLanguage     = "language"
)

// FlatKV serializes the session to a flat string record compatible with
// host configuration storage.
func (s Session) FlatKV() map[string]string {
	kv := map[string]string{
		kvAccessToken: s.AccessToken,
		kvGatewayURL:  s.GatewayBaseURL,
		kvAuthURL:     s.AuthBaseURL,
		kvVersion:     s.Version.String(),
		kvCountry:     s.Country,
		kvLanguage:    s.Language,
	}
	if s.RefreshToken != "" {
		kv[kvRefreshToken] = s.RefreshToken
	}
	if !s.TokenExpiry.IsZero() {
		kv[kvTokenExpiry] = s.TokenExpiry.UTC().Format(time.RFC3339)
	}
	return kv
}

// SessionFromKV restores a session persisted with FlatKV.
func SessionFromKV(kv map[string]string) (Session, error) {
	version, err := ParseProtocolVersion(kv[kvVersion])
	if err != nil {
		return Session{}, fmt.Errorf("restore session: %w", err)
	}
	session := Session{
		AccessToken:    kv[kvAccessToken],
		RefreshToken:   kv[kvRefreshToken],
		GatewayBaseURL: kv[kvGatewayURL],
		AuthBaseURL:    kv[kvAuthURL],
		Version:        version,
		Country:        kv[kvCountry],
		Language:       kv[kvLanguage],
	}
	if session.AccessToken == "" {
		return Session{}, fmt.Errorf("restore session: missing %s", kvAccessToken)
	}
	if session.GatewayBaseURL == "" {
		return Session{}, fmt.Errorf("restore session: missing %s", kvGatewayURL)
	}
	if raw := kv[kvTokenExpiry]; raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Session{}, fmt.Errorf("restore session: bad %s: %w", kvTokenExpiry, err)
		}
		session.TokenExpiry = expiry
	}
	return session, nil
}

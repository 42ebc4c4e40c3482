package thinq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	clientID       = "LGAO221A02"
	applicationKey = "wideq-go-client"

	// Access tokens are considered stale this close to expiry so a
	// refresh lands before the gateway starts rejecting calls.
	expirySkew = 30 * time.Second
)

// Endpoints holds the region-independent bootstrap URLs. They are passed
// explicitly rather than read from process-wide state so tests can point
// the manager at a local server.
type Endpoints struct {
	AuthBase string // account server (login page, OAuth token endpoint)
	V2Base   string // thinq2 route gateway
	V1Base   string // thinq1 gateway
}

// DefaultEndpoints returns the production vendor endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthBase: "https://us.m.lgaccount.com",
		V2Base:   "https://route.lgthinq.com:46030/v1",
		V1Base:   "https://kic.lgthinq.com:46030/api",
	}
}

// Credentials carries the token obtained from the vendor's browser login
// redirect. Username/password primitive login is not part of the flow;
// OAuthURL yields the page that produces this token.
type Credentials struct {
	AuthCode string
}

// AuthConfig configures an AuthManager.
type AuthConfig struct {
	Endpoints Endpoints
	Country   string
	Language  string

	// HTTPClient overrides the default client (tests, rate guards).
	HTTPClient *http.Client

	// OnUpdate is invoked after every committed session replacement so
	// the host can persist the new tokens. May be nil.
	OnUpdate func(Session)
}

// AuthManager owns the session: it performs the login handshake, resolves
// which protocol version serves the account, and refreshes expired tokens.
// The current session is replaced atomically; a failed refresh leaves the
// prior session untouched.
type AuthManager struct {
	cfg  AuthConfig
	http *http.Client

	current atomic.Pointer[Session]
	group   singleflight.Group
}

func NewAuthManager(cfg AuthConfig) *AuthManager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &AuthManager{cfg: cfg, http: httpClient}
}

// Session returns the current session, or nil before login/restore.
func (m *AuthManager) Session() *Session {
	return m.current.Load()
}

// Restore installs a previously persisted session.
func (m *AuthManager) Restore(session Session) {
	m.commit(session)
}

// OAuthURL builds the browser login URL for a region. Pure function of
// configuration; no network call.
func OAuthURL(endpoints Endpoints, country, language string) string {
	query := url.Values{}
	query.Set("country", country)
	query.Set("language", language)
	query.Set("client_id", clientID)
	query.Set("svc_list", "SVC202")
	query.Set("redirect_uri", endpoints.AuthBase+"/login/iabClose")
	return endpoints.AuthBase + "/login/signin?" + query.Encode()
}

// Login performs the vendor handshake. When the account's protocol version
// is unknown it probes V2 first and falls back to V1 if the region is not
// served there. Credential-shaped failures (bad token, federated account)
// propagate immediately without a fallback attempt.
func (m *AuthManager) Login(ctx context.Context, creds Credentials) (Session, error) {
	session, err := m.loginV2(ctx, creds)
	if err == nil {
		m.commit(session)
		return session, nil
	}
	if !AuthErrorOfKind(err, AuthUnsupportedRegion) {
		return Session{}, err
	}

	session, v1Err := m.loginV1(ctx, creds)
	if v1Err != nil {
		if AuthErrorOfKind(v1Err, AuthUnsupportedRegion) {
			return Session{}, err
		}
		return Session{}, v1Err
	}
	m.commit(session)
	return session, nil
}

// Refresh exchanges the refresh token for a fresh access token. Concurrent
// callers share one in-flight exchange; none of them observe a half-updated
// session.
func (m *AuthManager) Refresh(ctx context.Context) (Session, error) {
	result, err, _ := m.group.Do("refresh", func() (any, error) {
		prior := m.current.Load()
		if prior == nil {
			return nil, &AuthError{Kind: AuthRefreshExpired, Message: "no session to refresh"}
		}

		var (
			session Session
			err     error
		)
		switch prior.Version {
		case V1:
			session, err = m.refreshV1(ctx, *prior)
		default:
			session, err = m.refreshV2(ctx, *prior)
		}
		if err != nil {
			refreshFailure.Inc()
			tokenValid.Set(0)
			return nil, err
		}
		m.commit(session)
		refreshSuccess.Inc()
		return session, nil
	})
	if err != nil {
		return Session{}, err
	}
	return result.(Session), nil
}

func (m *AuthManager) commit(session Session) {
	m.current.Store(&session)
	tokenValid.Set(1)
	if m.cfg.OnUpdate != nil {
		m.cfg.OnUpdate(session)
	}
}

// V2 login endpoint responses use the resultCode/message envelope.
type v2LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	GatewayURI   string `json:"gatewayUri"`
	OAuthURI     string `json:"oauthUri"`
}

func (m *AuthManager) loginV2(ctx context.Context, creds Credentials) (Session, error) {
	body := map[string]string{
		"authCode":     creds.AuthCode,
		"countryCode":  m.cfg.Country,
		"languageCode": m.cfg.Language,
	}

	var envelope struct {
		ResultCode string        `json:"resultCode"`
		Message    string        `json:"message"`
		Result     v2LoginResult `json:"result"`
	}
	if err := m.postJSON(ctx, m.cfg.Endpoints.V2Base+"/auth/login", body, &envelope); err != nil {
		return Session{}, err
	}
	if envelope.ResultCode != resultCodeOK {
		return Session{}, authErrorFromCode(envelope.ResultCode, envelope.Message)
	}

	result := envelope.Result
	if result.AccessToken == "" || result.GatewayURI == "" {
		return Session{}, &AuthError{Kind: AuthInvalidCredential, Message: "login response missing tokens"}
	}

	authBase := result.OAuthURI
	if authBase == "" {
		authBase = m.cfg.Endpoints.AuthBase
	}

	return Session{
		AccessToken:    result.AccessToken,
		RefreshToken:   result.RefreshToken,
		TokenExpiry:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
		GatewayBaseURL: strings.TrimSuffix(result.GatewayURI, "/"),
		AuthBaseURL:    strings.TrimSuffix(authBase, "/"),
		Version:        V2,
		Country:        m.cfg.Country,
		Language:       m.cfg.Language,
	}, nil
}

// V1 login uses the lgedmRoot envelope. There is no refresh token on this
// generation; the login token itself is long-lived and kept for re-login.
func (m *AuthManager) loginV1(ctx context.Context, creds Credentials) (Session, error) {
	payload := map[string]any{
		lgedmRootKey: map[string]string{
			"countryCode": m.cfg.Country,
			"langCode":    m.cfg.Language,
			"loginType":   "EMP",
			"token":       creds.AuthCode,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("marshal login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoints.V1Base+"/member/login", bytes.NewReader(data))
	if err != nil {
		return Session{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-thinq-application-key", applicationKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Session{}, fmt.Errorf("decode login response: %w", err)
	}
	var root struct {
		ReturnCd   string `json:"returnCd"`
		ReturnMsg  string `json:"returnMsg"`
		JSessionID string `json:"jsessionId"`
		GatewayURI string `json:"gatewayUri"`
	}
	if raw, exists := envelope[lgedmRootKey]; exists {
		if err := json.Unmarshal(raw, &root); err != nil {
			return Session{}, fmt.Errorf("decode login response: %w", err)
		}
	}
	if root.ReturnCd != resultCodeOK {
		return Session{}, authErrorFromCode(root.ReturnCd, root.ReturnMsg)
	}
	if root.JSessionID == "" {
		return Session{}, &AuthError{Kind: AuthInvalidCredential, Message: "login response missing session id"}
	}

	gatewayBase := root.GatewayURI
	if gatewayBase == "" {
		gatewayBase = m.cfg.Endpoints.V1Base
	}

	return Session{
		AccessToken:    root.JSessionID,
		RefreshToken:   creds.AuthCode,
		GatewayBaseURL: strings.TrimSuffix(gatewayBase, "/"),
		AuthBaseURL:    m.cfg.Endpoints.AuthBase,
		Version:        V1,
		Country:        m.cfg.Country,
		Language:       m.cfg.Language,
	}, nil
}

func (m *AuthManager) refreshV2(ctx context.Context, prior Session) (Session, error) {
	if prior.RefreshToken == "" {
		return Session{}, &AuthError{Kind: AuthRefreshExpired, Message: "session has no refresh token"}
	}

	config := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{TokenURL: prior.AuthBaseURL + "/oauth2/token"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http)
	token, err := config.TokenSource(ctx, &oauth2.Token{RefreshToken: prior.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return Session{}, &AuthError{
				Kind:    AuthRefreshExpired,
				Code:    retrieveErr.ErrorCode,
				Message: strings.TrimSpace(string(retrieveErr.Body)),
			}
		}
		return Session{}, fmt.Errorf("token refresh: %w", err)
	}

	next := prior
	next.AccessToken = token.AccessToken
	next.TokenExpiry = token.Expiry
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}
	return next, nil
}

// V1 has no refresh grant; re-running the login exchange with the stored
// long-lived token plays the same role.
func (m *AuthManager) refreshV1(ctx context.Context, prior Session) (Session, error) {
	session, err := m.loginV1(ctx, Credentials{AuthCode: prior.RefreshToken})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) && authErr.Kind == AuthInvalidCredential {
			return Session{}, &AuthError{Kind: AuthRefreshExpired, Code: authErr.Code, Message: authErr.Message}
		}
		return Session{}, err
	}
	return session, nil
}

func (m *AuthManager) postJSON(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", clientID)
	req.Header.Set("x-country-code", m.cfg.Country)
	req.Header.Set("x-language-code", m.cfg.Language)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

// Vendor account result codes shared by both login generations.
const (
	authCodeInvalidCredential = "0004"
	authCodeUnsupportedRegion = "0105"
	authCodeSocialLogin       = "0110"
)

func authErrorFromCode(code, message string) *AuthError {
	kind := AuthInvalidCredential
	switch code {
	case authCodeUnsupportedRegion:
		kind = AuthUnsupportedRegion
	case authCodeSocialLogin:
		kind = AuthSocialLoginUnsupported
	}
	return &AuthError{Kind: kind, Code: code, Message: message}
}

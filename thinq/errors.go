package thinq

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies login and refresh failures.
type AuthErrorKind int

const (
	AuthInvalidCredential AuthErrorKind = iota
	AuthUnsupportedRegion
	AuthSocialLoginUnsupported
	AuthRefreshExpired
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidCredential:
		return "invalid credential"
	case AuthUnsupportedRegion:
		return "unsupported region"
	case AuthSocialLoginUnsupported:
		return "social login unsupported"
	case AuthRefreshExpired:
		return "refresh expired"
	default:
		return "unknown"
	}
}

// AuthError surfaces vendor account errors.
type AuthError struct {
	Kind    AuthErrorKind
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("thinq auth: %s", e.Kind)
	}
	return fmt.Sprintf("thinq auth: %s (code %s: %s)", e.Kind, e.Code, e.Message)
}

// AuthErrorOfKind reports whether err is an AuthError of the given kind.
func AuthErrorOfKind(err error, kind AuthErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// GatewayErrorKind classifies gateway call failures.
type GatewayErrorKind int

const (
	GatewayUnauthorized GatewayErrorKind = iota
	GatewayTimeout
	GatewayRateLimited
	GatewayDeviceOffline
	GatewayRejected
	GatewayNotFound
)

func (k GatewayErrorKind) String() string {
	switch k {
	case GatewayUnauthorized:
		return "unauthorized"
	case GatewayTimeout:
		return "timeout"
	case GatewayRateLimited:
		return "rate limited"
	case GatewayDeviceOffline:
		return "device offline"
	case GatewayRejected:
		return "rejected"
	case GatewayNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// GatewayError surfaces vendor result codes.
type GatewayError struct {
	Kind    GatewayErrorKind
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("thinq gateway: %s", e.Kind)
	}
	return fmt.Sprintf("thinq gateway: %s (code %s: %s)", e.Kind, e.Code, e.Message)
}

// Retryable reports whether the caller may retry the call with backoff.
// Unauthorized is handled inside the client and DeviceOffline means the
// appliance itself is unreachable, so neither is retryable.
func (e *GatewayError) Retryable() bool {
	return e.Kind == GatewayTimeout || e.Kind == GatewayRateLimited
}

// GatewayErrorOfKind reports whether err is a GatewayError of the given kind.
func GatewayErrorOfKind(err error, kind GatewayErrorKind) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// ErrNotStarted is returned by Monitor.Poll for a device whose monitor
// session was never started or was already stopped.
var ErrNotStarted = errors.New("thinq monitor: not started")

// ErrNotReady means the vendor has no fresh snapshot yet. It is not a
// failure; the caller should simply try again on the next tick.
var ErrNotReady = errors.New("thinq monitor: data not ready")

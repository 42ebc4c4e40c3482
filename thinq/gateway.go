package thinq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DeviceDescriptor identifies one registered appliance. Immutable once
// fetched from the device list.
type DeviceDescriptor struct {
	DeviceID        string
	DeviceTypeCode  int
	Alias           string
	ModelName       string
	ModelInfoRef    string
	PlatformVersion string
}

// Command is a wire-encoded control value produced by a device model's
// command encoder.
type Command struct {
	Key   string
	Value string
}

// Client issues authenticated calls to the vendor gateway. All protocol
// version differences are confined to this type; everything above it is
// version-agnostic.
type Client struct {
	auth *AuthManager
	http *http.Client

	mu         sync.Mutex
	modelCache map[string]*ModelInfo
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the transport, e.g. one wrapped by a rate
// guard.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.http = httpClient }
}

func NewClient(auth *AuthManager, opts ...ClientOption) *Client {
	client := &Client{
		auth:       auth,
		http:       &http.Client{Timeout: 15 * time.Second},
		modelCache: make(map[string]*ModelInfo),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ListDevices enumerates the account's registered appliances.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	var devices []DeviceDescriptor
	err := c.withAuthRetry(ctx, "list_devices", func(session Session) error {
		var err error
		switch session.Version {
		case V1:
			devices, err = c.listDevicesV1(ctx, session)
		default:
			devices, err = c.listDevicesV2(ctx, session)
		}
		return err
	})
	return devices, err
}

// FetchStatus fetches one raw status snapshot outside a monitor session.
func (c *Client) FetchStatus(ctx context.Context, deviceID string) (RawPayload, error) {
	var payload RawPayload
	err := c.withAuthRetry(ctx, "fetch_status", func(session Session) error {
		var err error
		switch session.Version {
		case V1:
			payload, err = c.fetchStatusV1(ctx, session, deviceID)
		default:
			payload, err = c.fetchStatusV2(ctx, session, deviceID)
		}
		return err
	})
	return payload, err
}

// SendCommand delivers an encoded control value to a device.
func (c *Client) SendCommand(ctx context.Context, deviceID string, cmd Command) error {
	return c.withAuthRetry(ctx, "send_command", func(session Session) error {
		switch session.Version {
		case V1:
			return c.sendCommandV1(ctx, session, deviceID, cmd)
		default:
			return c.sendCommandV2(ctx, session, deviceID, cmd)
		}
	})
}

// StartMonitor opens a vendor-side polling handle. On V2 no server handle
// exists; the returned work id is synthetic and polls read the dashboard.
func (c *Client) StartMonitor(ctx context.Context, deviceID string) (string, error) {
	var workID string
	err := c.withAuthRetry(ctx, "monitor_start", func(session Session) error {
		var err error
		switch session.Version {
		case V1:
			workID, err = c.startMonitorV1(ctx, session, deviceID)
		default:
			workID, err = c.startMonitorV2(deviceID)
		}
		return err
	})
	return workID, err
}

// PollMonitor reads one raw snapshot from an open monitor handle. Returns
// ErrNotReady when the vendor has no fresh data and errMonitorGone when
// the handle expired server-side.
func (c *Client) PollMonitor(ctx context.Context, deviceID, workID string) (RawPayload, error) {
	var payload RawPayload
	err := c.withAuthRetry(ctx, "monitor_poll", func(session Session) error {
		var err error
		switch session.Version {
		case V1:
			payload, err = c.pollMonitorV1(ctx, session, deviceID, workID)
		default:
			payload, err = c.fetchStatusV2(ctx, session, deviceID)
		}
		return err
	})
	return payload, err
}

// StopMonitor releases a vendor-side handle. Stopping an already-gone
// handle is not an error.
func (c *Client) StopMonitor(ctx context.Context, deviceID, workID string) error {
	return c.withAuthRetry(ctx, "monitor_stop", func(session Session) error {
		switch session.Version {
		case V1:
			return c.stopMonitorV1(ctx, session, deviceID, workID)
		default:
			return nil
		}
	})
}

// FetchModelInfo loads the capability schema for a model reference. The
// schema is immutable for a given reference, so entries are cached for the
// process lifetime. A population race stores one fetch's result last;
// the value is pure data, so that is harmless.
func (c *Client) FetchModelInfo(ctx context.Context, ref string) (*ModelInfo, error) {
	if ref == "" {
		return nil, &GatewayError{Kind: GatewayNotFound, Message: "empty model info reference"}
	}

	c.mu.Lock()
	cached, exists := c.modelCache[ref]
	c.mu.Unlock()
	if exists {
		return cached, nil
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build model info request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		observeGateway("model_info", start, err)
		return nil, classifyTransport("model info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		observeGateway("model_info", start, errors.New("not found"))
		return nil, &GatewayError{Kind: GatewayNotFound, Message: "model info " + ref}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		err := &GatewayError{Kind: GatewayRejected, Message: fmt.Sprintf("model info http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		observeGateway("model_info", start, err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	info, err := ParseModelInfo(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.modelCache[ref] = info
	c.mu.Unlock()
	observeGateway("model_info", start, nil)
	return info, nil
}

// withAuthRetry runs fn with the current session. A token within skew of
// expiry is refreshed up front so the call lands with fresh credentials.
// On an unauthorized result it delegates one refresh to the auth manager
// and retries exactly once; a second unauthorized propagates unchanged.
func (c *Client) withAuthRetry(ctx context.Context, op string, fn func(session Session) error) error {
	session := c.auth.Session()
	if session == nil {
		return &AuthError{Kind: AuthRefreshExpired, Message: "not logged in"}
	}
	if session.Expired(expirySkew) {
		// Best effort; a failed proactive refresh falls through to the
		// reactive unauthorized path below.
		if refreshed, err := c.auth.Refresh(ctx); err == nil {
			session = &refreshed
		}
	}

	start := time.Now()
	err := fn(*session)
	observeGateway(op, start, err)
	if !GatewayErrorOfKind(err, GatewayUnauthorized) {
		return err
	}

	refreshed, refreshErr := c.auth.Refresh(ctx)
	if refreshErr != nil {
		return refreshErr
	}

	start = time.Now()
	err = fn(refreshed)
	observeGateway(op, start, err)
	return err
}

// errMonitorGone marks a vendor-side monitor handle that expired; the
// Monitor reacts by re-starting the session once.
var errMonitorGone = errors.New("thinq gateway: monitor session gone")

// Vendor result codes shared by both envelope shapes.
const (
	resultCodeOK           = "0000"
	resultCodeNoData       = "0006"
	resultCodeMonitorGone  = "0010"
	resultCodeUnauthorized = "0102"
	resultCodeNotFound     = "0103"
	resultCodeOffline      = "0106"
	resultCodeRateLimited  = "9003"
)

func gatewayErrorFromCode(code, message string) error {
	switch code {
	case resultCodeOK:
		return nil
	case resultCodeNoData:
		return ErrNotReady
	case resultCodeMonitorGone:
		return errMonitorGone
	case resultCodeUnauthorized:
		return &GatewayError{Kind: GatewayUnauthorized, Code: code, Message: message}
	case resultCodeNotFound:
		return &GatewayError{Kind: GatewayNotFound, Code: code, Message: message}
	case resultCodeOffline:
		return &GatewayError{Kind: GatewayDeviceOffline, Code: code, Message: message}
	case resultCodeRateLimited:
		return &GatewayError{Kind: GatewayRateLimited, Code: code, Message: message}
	default:
		return &GatewayError{Kind: GatewayRejected, Code: code, Message: message}
	}
}

// rateLimitGuarded is implemented by the rate guard's blocking error so
// the client can classify it without importing the guard package.
type rateLimitGuarded interface {
	RateLimited() bool
}

func classifyTransport(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GatewayError{Kind: GatewayTimeout, Message: op + ": " + err.Error()}
	}
	var guarded rateLimitGuarded
	if errors.As(err, &guarded) && guarded.RateLimited() {
		return &GatewayError{Kind: GatewayRateLimited, Message: op + ": " + err.Error()}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func httpStatusError(op string, status int, body []byte) error {
	message := fmt.Sprintf("%s http %d: %s", op, status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &GatewayError{Kind: GatewayUnauthorized, Message: message}
	case status == http.StatusNotFound:
		return &GatewayError{Kind: GatewayNotFound, Message: message}
	case status == http.StatusTooManyRequests:
		return &GatewayError{Kind: GatewayRateLimited, Message: message}
	default:
		return &GatewayError{Kind: GatewayRejected, Message: message}
	}
}

package thinq

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" // nolint:gosec
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// V1 protocol: every request is a POST with a single lgedmRoot JSON
// envelope, authenticated by the session token plus an HMAC signature over
// body and timestamp.
const (
	lgedmRootKey  = "lgedmRoot"
	v1SecurityKey = "nuts_securitykey"
)

type v1Work struct {
	DeviceID   string `json:"deviceId"`
	WorkID     string `json:"workId"`
	ReturnCode string `json:"returnCode"`
	ReturnData string `json:"returnData"`
}

func (c *Client) postV1(ctx context.Context, session Session, path string, body map[string]any, root any) error {
	payload, err := json.Marshal(map[string]any{lgedmRootKey: body})
	if err != nil {
		return fmt.Errorf("marshal v1 request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.GatewayBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build v1 request: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-thinq-token", session.AccessToken)
	req.Header.Set("x-thinq-application-key", applicationKey)
	req.Header.Set("x-thinq-security-key", v1SecurityKey)
	req.Header.Set("x-thinq-timestamp", timestamp)
	req.Header.Set("x-thinq-signature", signV1(payload, timestamp))

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport("v1 "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return httpStatusError("v1 "+path, resp.StatusCode, data)
	}

	var envelope struct {
		Root json.RawMessage `json:"lgedmRoot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode v1 response: %w", err)
	}

	var result struct {
		ReturnCd  string `json:"returnCd"`
		ReturnMsg string `json:"returnMsg"`
	}
	if err := json.Unmarshal(envelope.Root, &result); err != nil {
		return fmt.Errorf("decode v1 result code: %w", err)
	}
	if err := gatewayErrorFromCode(result.ReturnCd, result.ReturnMsg); err != nil {
		return err
	}

	if root != nil {
		if err := json.Unmarshal(envelope.Root, root); err != nil {
			return fmt.Errorf("decode v1 payload: %w", err)
		}
	}
	return nil
}

// signV1 derives the request signature from body and timestamp using the
// session-scheme HMAC key.
func signV1(body []byte, timestamp string) string {
	mac := hmac.New(sha1.New, []byte(v1SecurityKey))
	mac.Write(body)
	mac.Write([]byte("\n"))
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) listDevicesV1(ctx context.Context, session Session) ([]DeviceDescriptor, error) {
	var root struct {
		Item []v1DeviceItem `json:"item"`
	}
	if err := c.postV1(ctx, session, "/device/deviceList", map[string]any{}, &root); err != nil {
		return nil, err
	}

	devices := make([]DeviceDescriptor, 0, len(root.Item))
	for _, item := range root.Item {
		devices = append(devices, item.descriptor())
	}
	return devices, nil
}

type v1DeviceItem struct {
	DeviceID     string          `json:"deviceId"`
	DeviceType   json.RawMessage `json:"deviceType"`
	Alias        string          `json:"alias"`
	ModelNm      string          `json:"modelNm"`
	ModelJSONURL string          `json:"modelJsonUrl"`
}

func (d v1DeviceItem) descriptor() DeviceDescriptor {
	typeCode, _ := strconv.Atoi(rawToString(d.DeviceType))
	return DeviceDescriptor{
		DeviceID:        d.DeviceID,
		DeviceTypeCode:  typeCode,
		Alias:           d.Alias,
		ModelName:       d.ModelNm,
		ModelInfoRef:    d.ModelJSONURL,
		PlatformVersion: "thinq1",
	}
}

// A one-shot status read on V1 is a short-lived monitor round trip: the
// protocol has no standalone status endpoint.
func (c *Client) fetchStatusV1(ctx context.Context, session Session, deviceID string) (RawPayload, error) {
	workID, err := c.startMonitorV1(ctx, session, deviceID)
	if err != nil {
		return RawPayload{}, err
	}
	defer func() { _ = c.stopMonitorV1(ctx, session, deviceID, workID) }()
	return c.pollMonitorV1(ctx, session, deviceID, workID)
}

func (c *Client) startMonitorV1(ctx context.Context, session Session, deviceID string) (string, error) {
	workID := newWorkID()
	body := map[string]any{
		"cmd":      "Mon",
		"cmdOpt":   "Start",
		"deviceId": deviceID,
		"workId":   workID,
	}
	var root struct {
		WorkID string `json:"workId"`
	}
	if err := c.postV1(ctx, session, "/rti/rtiMon", body, &root); err != nil {
		return "", err
	}
	if root.WorkID != "" {
		workID = root.WorkID
	}
	return workID, nil
}

func (c *Client) pollMonitorV1(ctx context.Context, session Session, deviceID, workID string) (RawPayload, error) {
	body := map[string]any{
		"workList": []map[string]string{{"deviceId": deviceID, "workId": workID}},
	}
	var root struct {
		WorkList json.RawMessage `json:"workList"`
	}
	if err := c.postV1(ctx, session, "/rti/rtiResult", body, &root); err != nil {
		return RawPayload{}, err
	}

	work, err := firstWork(root.WorkList)
	if err != nil {
		return RawPayload{}, err
	}
	if err := gatewayErrorFromCode(work.ReturnCode, "monitor poll"); err != nil {
		return RawPayload{}, err
	}
	if work.ReturnData == "" {
		return RawPayload{}, ErrNotReady
	}

	data, err := base64.StdEncoding.DecodeString(work.ReturnData)
	if err != nil {
		return RawPayload{}, fmt.Errorf("decode monitor data: %w", err)
	}
	return RawPayload{Data: data}, nil
}

func (c *Client) stopMonitorV1(ctx context.Context, session Session, deviceID, workID string) error {
	body := map[string]any{
		"cmd":      "Mon",
		"cmdOpt":   "Stop",
		"deviceId": deviceID,
		"workId":   workID,
	}
	err := c.postV1(ctx, session, "/rti/rtiMon", body, nil)
	if err == errMonitorGone {
		return nil
	}
	return err
}

func (c *Client) sendCommandV1(ctx context.Context, session Session, deviceID string, cmd Command) error {
	body := map[string]any{
		"cmd":      "Control",
		"cmdOpt":   "Set",
		"deviceId": deviceID,
		"value":    map[string]string{cmd.Key: cmd.Value},
	}
	return c.postV1(ctx, session, "/rti/rtiControl", body, nil)
}

// The vendor replies with either a single work object or a list.
func firstWork(raw json.RawMessage) (v1Work, error) {
	if len(raw) == 0 {
		return v1Work{}, ErrNotReady
	}
	var list []v1Work
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return v1Work{}, ErrNotReady
		}
		return list[0], nil
	}
	var single v1Work
	if err := json.Unmarshal(raw, &single); err != nil {
		return v1Work{}, fmt.Errorf("decode work list: %w", err)
	}
	return single, nil
}

func newWorkID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

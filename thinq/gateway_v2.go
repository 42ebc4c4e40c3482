package thinq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// V2 protocol: bearer-token REST with a resultCode/message JSON envelope.

func (c *Client) doV2(ctx context.Context, session Session, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal v2 request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, session.GatewayBaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build v2 request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", clientID)
	req.Header.Set("x-country-code", session.Country)
	req.Header.Set("x-language-code", session.Language)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport("v2 "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read v2 response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return httpStatusError("v2 "+path, resp.StatusCode, data)
	}

	var envelope struct {
		ResultCode string          `json:"resultCode"`
		Message    string          `json:"message"`
		Result     json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode v2 response: %w", err)
	}
	if err := gatewayErrorFromCode(envelope.ResultCode, envelope.Message); err != nil {
		return err
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode v2 result: %w", err)
		}
	}
	return nil
}

func (c *Client) listDevicesV2(ctx context.Context, session Session) ([]DeviceDescriptor, error) {
	var result struct {
		Item []struct {
			DeviceID     string          `json:"deviceId"`
			DeviceType   json.RawMessage `json:"deviceType"`
			Alias        string          `json:"alias"`
			ModelName    string          `json:"modelName"`
			ModelJSONURI string          `json:"modelJsonUri"`
			PlatformType string          `json:"platformType"`
		} `json:"item"`
	}
	if err := c.doV2(ctx, session, http.MethodGet, "/service/application/dashboard", nil, &result); err != nil {
		return nil, err
	}

	devices := make([]DeviceDescriptor, 0, len(result.Item))
	for _, item := range result.Item {
		typeCode, _ := strconv.Atoi(rawToString(item.DeviceType))
		platform := item.PlatformType
		if platform == "" {
			platform = "thinq2"
		}
		devices = append(devices, DeviceDescriptor{
			DeviceID:        item.DeviceID,
			DeviceTypeCode:  typeCode,
			Alias:           item.Alias,
			ModelName:       item.ModelName,
			ModelInfoRef:    item.ModelJSONURI,
			PlatformVersion: platform,
		})
	}
	return devices, nil
}

// fetchStatusV2 reads the current snapshot. Legacy device generations
// report the snapshot as a string holding an XML document inside the JSON
// envelope; the payload is handed on opaque either way and unwrapped by
// Normalize.
func (c *Client) fetchStatusV2(ctx context.Context, session Session, deviceID string) (RawPayload, error) {
	var result struct {
		Snapshot json.RawMessage `json:"snapshot"`
	}
	if err := c.doV2(ctx, session, http.MethodGet, "/service/devices/"+deviceID, nil, &result); err != nil {
		return RawPayload{}, err
	}
	if len(result.Snapshot) == 0 {
		return RawPayload{}, ErrNotReady
	}

	var wrapped string
	if err := json.Unmarshal(result.Snapshot, &wrapped); err == nil {
		return RawPayload{Data: []byte(wrapped)}, nil
	}
	return RawPayload{Data: result.Snapshot}, nil
}

func (c *Client) startMonitorV2(deviceID string) (string, error) {
	// No vendor-side subscription exists on V2; the dashboard endpoint
	// is always live. A synthetic handle keeps the monitor state machine
	// uniform across versions.
	return "dashboard:" + deviceID, nil
}

func (c *Client) sendCommandV2(ctx context.Context, session Session, deviceID string, cmd Command) error {
	body := map[string]string{
		"ctrlKey":   "basicCtrl",
		"command":   "Set",
		"dataKey":   cmd.Key,
		"dataValue": cmd.Value,
	}
	return c.doV2(ctx, session, http.MethodPost, "/service/devices/"+deviceID+"/control", body, nil)
}

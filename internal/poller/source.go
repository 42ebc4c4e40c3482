// Package poller drives the periodic status loop: one ticker per
// device, a global concurrency bound, and per-device serialization so a
// command never races its own device's poll.
package poller

import (
	"context"

	"github.com/homecloud/thinqd/thinq"
	"github.com/homecloud/thinqd/thinq/devices"
)

// Source yields decoded status for one device and accepts commands.
type Source interface {
	Poll(ctx context.Context, deviceID string) (devices.Status, error)
	Send(ctx context.Context, deviceID string, intent devices.Intent) error
}

// CloudSource reads status through the vendor gateway, reusing a
// monitor session per device and decoding through the model schema.
type CloudSource struct {
	Client  *thinq.Client
	Monitor *thinq.Monitor
	Models  map[string]devices.Model
}

func NewCloudSource(client *thinq.Client, models map[string]devices.Model) *CloudSource {
	return &CloudSource{
		Client:  client,
		Monitor: thinq.NewMonitor(client),
		Models:  models,
	}
}

func (s *CloudSource) Poll(ctx context.Context, deviceID string) (devices.Status, error) {
	model, ok := s.Models[deviceID]
	if !ok {
		return nil, thinq.ErrNotStarted
	}

	session, err := s.Monitor.Start(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	payload, err := s.Monitor.Poll(ctx, session)
	if err != nil {
		return nil, err
	}
	raw, err := thinq.Normalize(payload, model.Info())
	if err != nil {
		return nil, err
	}
	return model.Decode(raw), nil
}

func (s *CloudSource) Send(ctx context.Context, deviceID string, intent devices.Intent) error {
	model, ok := s.Models[deviceID]
	if !ok {
		return thinq.ErrNotStarted
	}
	cmd, err := model.EncodeCommand(intent)
	if err != nil {
		return err
	}
	return s.Client.SendCommand(ctx, deviceID, cmd)
}

// Close stops all monitor sessions.
func (s *CloudSource) Close(ctx context.Context) {
	s.Monitor.StopAll(ctx)
}

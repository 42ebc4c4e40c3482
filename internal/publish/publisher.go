// Package publish pushes decoded device status onto an MQTT broker so
// home automation consumers can subscribe instead of scraping metrics.
package publish

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/homecloud/thinqd/internal/config"
	"github.com/homecloud/thinqd/thinq/devices"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher writes retained per-device status messages to
// <prefix>/<device_id>/status.
type Publisher struct {
	client mqtt.Client
	prefix string
}

// New connects to the broker from config. A nil config yields a nil
// Publisher, which is safe to call.
func New(cfg *config.MQTTConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("thinqd-%d", os.Getpid())).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.PasswordFile != "" {
		password, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read mqtt password: %w", err)
		}
		opts.SetPassword(strings.TrimSpace(string(password)))
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("publish: connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	return &Publisher{client: client, prefix: cfg.TopicPrefix}, nil
}

// Publish sends one device's status, retained so late subscribers see
// the latest reading.
func (p *Publisher) Publish(deviceID string, status devices.Status) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(statusMessage{
		Kind:      string(status.StatusKind()),
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/status", p.prefix, deviceID)
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, flushing in-flight messages.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(uint(publishTimeout / time.Millisecond))
}

type statusMessage struct {
	Kind      string         `json:"kind"`
	Status    devices.Status `json:"status"`
	Timestamp string         `json:"timestamp"`
}

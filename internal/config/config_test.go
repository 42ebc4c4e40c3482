package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
country: US
language: en-US
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("http addr default: %q", cfg.HTTPAddr)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("poll interval default: %v", cfg.PollInterval())
	}
	if cfg.MaxConcurrentPolls != DefaultMaxPolls {
		t.Fatalf("max polls default: %d", cfg.MaxConcurrentPolls)
	}
	if cfg.RequestTimeout() != 15*time.Second {
		t.Fatalf("timeout default: %v", cfg.RequestTimeout())
	}
	if cfg.MQTT != nil || cfg.S3 != nil {
		t.Fatal("optional sections must stay nil when absent")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
country: KR
language: ko-KR
session_file: /tmp/session.json
poll_interval_seconds: 10
rate_per_minute: 30
mqtt:
  broker: tcp://broker.local:1883
  username: thinqd
s3:
  endpoint: https://minio.local
  bucket: homecloud
  access_key_file: /run/secrets/ak
  secret_key_file: /run/secrets/sk
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval() != 10*time.Second {
		t.Fatalf("poll interval: %v", cfg.PollInterval())
	}
	if cfg.MQTT.TopicPrefix != DefaultTopicPrefix {
		t.Fatalf("mqtt topic prefix default: %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.S3.Prefix != DefaultS3Prefix {
		t.Fatalf("s3 prefix default: %q", cfg.S3.Prefix)
	}
}

func TestValidateRejectsIncomplete(t *testing.T) {
	cases := []string{
		"language: en-US\n",
		"country: US\n",
		"country: US\nlanguage: en-US\nmqtt: {}\n",
		"country: US\nlanguage: en-US\ns3:\n  bucket: b\n",
	}
	for _, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("expected validation error for config:\n%s", content)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath        = "/etc/thinqd/config.yaml"
	DefaultHTTPAddr    = "0.0.0.0:8080"
	DefaultSessionFile = "/var/lib/thinqd/session.json"
	DefaultPollSeconds = 30
	DefaultMaxPolls    = 4
	DefaultRatePerMin  = 60
	DefaultTopicPrefix = "thinqd"
	DefaultS3Prefix    = "thinqd/session"
	DefaultTimeoutSecs = 15
)

// Config is the daemon's runtime configuration.
type Config struct {
	Country  string `yaml:"country"`
	Language string `yaml:"language"`

	// AuthCodeFile holds the OAuth callback token used for first login
	// when no persisted session exists.
	AuthCodeFile string `yaml:"auth_code_file"`
	SessionFile  string `yaml:"session_file"`

	HTTPAddr string `yaml:"http_addr"`

	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	MaxConcurrentPolls    int `yaml:"max_concurrent_polls"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	RatePerMinute         int `yaml:"rate_per_minute"`

	MQTT *MQTTConfig `yaml:"mqtt"`
	S3   *S3Config   `yaml:"s3"`

	// Endpoint overrides for tests and staging; empty means production.
	AuthBase string `yaml:"auth_base"`
	V1Base   string `yaml:"v1_base"`
	V2Base   string `yaml:"v2_base"`
}

// MQTTConfig configures status publishing. Absent means no publishing.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`
	TopicPrefix  string `yaml:"topic_prefix"`
	TLS          bool   `yaml:"tls"`
}

// S3Config configures the optional session mirror.
type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = DefaultSessionFile
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = DefaultPollSeconds
	}
	if cfg.MaxConcurrentPolls == 0 {
		cfg.MaxConcurrentPolls = DefaultMaxPolls
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = DefaultTimeoutSecs
	}
	if cfg.RatePerMinute == 0 {
		cfg.RatePerMinute = DefaultRatePerMin
	}
	if cfg.MQTT != nil && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.S3 != nil && cfg.S3.Prefix == "" {
		cfg.S3.Prefix = DefaultS3Prefix
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.Country == "" {
		return fmt.Errorf("country is required")
	}
	if cfg.Language == "" {
		return fmt.Errorf("language is required")
	}
	if cfg.PollIntervalSeconds < 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	if cfg.MaxConcurrentPolls < 1 {
		return fmt.Errorf("max_concurrent_polls must be at least 1")
	}
	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if cfg.S3 != nil {
		if cfg.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint is required")
		}
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required")
		}
		if cfg.S3.AccessKeyFile == "" {
			return fmt.Errorf("s3.access_key_file is required")
		}
		if cfg.S3.SecretKeyFile == "" {
			return fmt.Errorf("s3.secret_key_file is required")
		}
	}
	return nil
}

// PollInterval returns the per-device poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-call gateway timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

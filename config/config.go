// Package config provides configuration loading and management for PULSE
// agents and tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete PULSE configuration
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Encoding EncodingConfig `yaml:"encoding"`
	Security SecurityConfig `yaml:"security"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	NATS     NATSConfig     `yaml:"nats"`
}

// AgentConfig identifies this agent on the wire
type AgentConfig struct {
	// ID is the sender identifier stamped into outgoing envelopes
	ID string `yaml:"id"`
	// KeyFile is the path to the YAML key store (empty = in-memory only)
	KeyFile string `yaml:"key_file"`
}

// EncodingConfig configures the default wire format
type EncodingConfig struct {
	// Format is the default encoding: json, binary, or compact
	Format string `yaml:"format"`
}

// SecurityConfig configures signing and replay protection
type SecurityConfig struct {
	// ReplayWindow is how old a message may be before rejection
	ReplayWindow time.Duration `yaml:"replay_window"`
	// SkewTolerance is the allowed forward clock drift
	SkewTolerance time.Duration `yaml:"skew_tolerance"`
	// RedisAddr enables a shared Redis nonce store when non-empty
	RedisAddr string `yaml:"redis_addr"`
}

// ServerConfig configures the PULSE receiver endpoint
type ServerConfig struct {
	// Addr is the listen address (host:port)
	Addr string `yaml:"addr"`
	// TLSCert and TLSKey enable TLS when both are set
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	// RequireSignature rejects unsigned or unverifiable messages
	RequireSignature bool `yaml:"require_signature"`
}

// ClientConfig configures outbound requests
type ClientConfig struct {
	// Timeout is the per-request deadline
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of retry attempts after a failed send
	Retries int `yaml:"retries"`
	// InsecureSkipVerify disables TLS certificate checks (dev only)
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// NATSConfig configures the optional NATS transport
type NATSConfig struct {
	// URL is the NATS server URL (empty disables the NATS transport)
	URL string `yaml:"url"`
	// Subject is the base subject for request/reply exchanges
	Subject string `yaml:"subject"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID: "default-agent",
		},
		Encoding: EncodingConfig{
			Format: "json",
		},
		Security: SecurityConfig{
			ReplayWindow:  5 * time.Minute,
			SkewTolerance: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8470",
		},
		Client: ClientConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		NATS: NATSConfig{
			Subject: "pulse.messages",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return fmt.Errorf("agent.id is required")
	}
	switch c.Encoding.Format {
	case "json", "binary", "compact":
	default:
		return fmt.Errorf("encoding.format must be json, binary, or compact, got %q", c.Encoding.Format)
	}
	if c.Security.ReplayWindow <= 0 {
		return fmt.Errorf("security.replay_window must be positive")
	}
	if c.Security.SkewTolerance < 0 {
		return fmt.Errorf("security.skew_tolerance cannot be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("client.retries cannot be negative")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Agent config
	if other.Agent.ID != "" {
		c.Agent.ID = other.Agent.ID
	}
	if other.Agent.KeyFile != "" {
		c.Agent.KeyFile = other.Agent.KeyFile
	}

	// Encoding config
	if other.Encoding.Format != "" {
		c.Encoding.Format = other.Encoding.Format
	}

	// Security config
	if other.Security.ReplayWindow != 0 {
		c.Security.ReplayWindow = other.Security.ReplayWindow
	}
	if other.Security.SkewTolerance != 0 {
		c.Security.SkewTolerance = other.Security.SkewTolerance
	}
	if other.Security.RedisAddr != "" {
		c.Security.RedisAddr = other.Security.RedisAddr
	}

	// Server config
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.TLSCert != "" {
		c.Server.TLSCert = other.Server.TLSCert
	}
	if other.Server.TLSKey != "" {
		c.Server.TLSKey = other.Server.TLSKey
	}
	if other.Server.RequireSignature {
		c.Server.RequireSignature = true
	}

	// Client config
	if other.Client.Timeout != 0 {
		c.Client.Timeout = other.Client.Timeout
	}
	if other.Client.Retries != 0 {
		c.Client.Retries = other.Client.Retries
	}
	if other.Client.InsecureSkipVerify {
		c.Client.InsecureSkipVerify = true
	}

	// NATS config
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
}

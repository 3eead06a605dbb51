package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.ID != "default-agent" {
		t.Errorf("expected default agent id default-agent, got %s", cfg.Agent.ID)
	}
	if cfg.Encoding.Format != "json" {
		t.Errorf("expected default encoding json, got %s", cfg.Encoding.Format)
	}
	if cfg.Security.ReplayWindow != 5*time.Minute {
		t.Errorf("expected replay window 5m, got %v", cfg.Security.ReplayWindow)
	}
	if cfg.Security.SkewTolerance != 60*time.Second {
		t.Errorf("expected skew tolerance 60s, got %v", cfg.Security.SkewTolerance)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing agent id",
			modify:  func(c *Config) { c.Agent.ID = "" },
			wantErr: true,
		},
		{
			name:    "unknown encoding format",
			modify:  func(c *Config) { c.Encoding.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "compact encoding accepted",
			modify:  func(c *Config) { c.Encoding.Format = "compact" },
			wantErr: false,
		},
		{
			name:    "zero replay window",
			modify:  func(c *Config) { c.Security.ReplayWindow = 0 },
			wantErr: true,
		},
		{
			name:    "negative skew tolerance",
			modify:  func(c *Config) { c.Security.SkewTolerance = -time.Second },
			wantErr: true,
		},
		{
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "tls cert without key",
			modify:  func(c *Config) { c.Server.TLSCert = "/tmp/cert.pem" },
			wantErr: true,
		},
		{
			name: "tls cert and key together",
			modify: func(c *Config) {
				c.Server.TLSCert = "/tmp/cert.pem"
				c.Server.TLSKey = "/tmp/key.pem"
			},
			wantErr: false,
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Client.Retries = -1 },
			wantErr: true,
		},
		{
			name: "nats url without subject",
			modify: func(c *Config) {
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.Subject = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
agent:
  id: "analytics-agent"
  key_file: "/etc/pulse/keys.yaml"
encoding:
  format: "binary"
security:
  replay_window: 10m
  skew_tolerance: 30s
server:
  addr: "0.0.0.0:9000"
  require_signature: true
nats:
  url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Agent.ID != "analytics-agent" {
		t.Errorf("expected agent id analytics-agent, got %s", cfg.Agent.ID)
	}
	if cfg.Agent.KeyFile != "/etc/pulse/keys.yaml" {
		t.Errorf("expected key file /etc/pulse/keys.yaml, got %s", cfg.Agent.KeyFile)
	}
	if cfg.Encoding.Format != "binary" {
		t.Errorf("expected encoding binary, got %s", cfg.Encoding.Format)
	}
	if cfg.Security.ReplayWindow != 10*time.Minute {
		t.Errorf("expected replay window 10m, got %v", cfg.Security.ReplayWindow)
	}
	if cfg.Security.SkewTolerance != 30*time.Second {
		t.Errorf("expected skew tolerance 30s, got %v", cfg.Security.SkewTolerance)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("expected server addr 0.0.0.0:9000, got %s", cfg.Server.Addr)
	}
	if !cfg.Server.RequireSignature {
		t.Error("expected require_signature true")
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	// Subject not set in file, should keep default
	if cfg.NATS.Subject != "pulse.messages" {
		t.Errorf("expected default NATS subject, got %s", cfg.NATS.Subject)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Agent: AgentConfig{
			ID: "override-agent",
		},
		Encoding: EncodingConfig{
			Format: "binary",
		},
	}

	base.Merge(override)

	if base.Agent.ID != "override-agent" {
		t.Errorf("expected agent id override-agent, got %s", base.Agent.ID)
	}
	if base.Encoding.Format != "binary" {
		t.Errorf("expected encoding binary, got %s", base.Encoding.Format)
	}
	// Server addr should remain from base since override didn't set it
	if base.Server.Addr != "127.0.0.1:8470" {
		t.Errorf("expected server addr to remain default, got %s", base.Server.Addr)
	}
	if base.Security.ReplayWindow != 5*time.Minute {
		t.Errorf("expected replay window to remain default, got %v", base.Security.ReplayWindow)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agent.ID = "saved-agent"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Agent.ID != "saved-agent" {
		t.Errorf("expected agent id saved-agent, got %s", loaded.Agent.ID)
	}
}

func TestLoaderApplyEnv(t *testing.T) {
	t.Setenv("PULSE_AGENT_ID", "env-agent")
	t.Setenv("PULSE_ENCODING", "compact")
	t.Setenv("PULSE_REPLAY_WINDOW", "2m")

	cfg := DefaultConfig()
	loader := NewLoader(nil)
	loader.applyEnv(cfg)

	if cfg.Agent.ID != "env-agent" {
		t.Errorf("expected agent id env-agent, got %s", cfg.Agent.ID)
	}
	if cfg.Encoding.Format != "compact" {
		t.Errorf("expected encoding compact, got %s", cfg.Encoding.Format)
	}
	if cfg.Security.ReplayWindow != 2*time.Minute {
		t.Errorf("expected replay window 2m, got %v", cfg.Security.ReplayWindow)
	}
}

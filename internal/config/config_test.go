package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
portal:
  base_url: "https://portal.example.bg"
  csrf_token: "abc123"
transport:
  reconnect_base_delay: 2s
  max_reconnect_attempts: 4
filter:
  page_size: 50
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Portal.BaseURL != "https://portal.example.bg" {
		t.Errorf("Portal.BaseURL = %q", cfg.Portal.BaseURL)
	}
	if cfg.Portal.CSRFToken != "abc123" {
		t.Errorf("Portal.CSRFToken = %q", cfg.Portal.CSRFToken)
	}
	if cfg.Transport.ReconnectBaseDelay != 2*time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 2s", cfg.Transport.ReconnectBaseDelay)
	}
	if cfg.Transport.MaxReconnectAttempts != 4 {
		t.Errorf("MaxReconnectAttempts = %d, want 4", cfg.Transport.MaxReconnectAttempts)
	}
	if cfg.Filter.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Filter.PageSize)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Transport.HeartbeatOutgoing != 10*time.Second {
		t.Errorf("HeartbeatOutgoing = %v, want 10s", cfg.Transport.HeartbeatOutgoing)
	}
	if cfg.Transport.ConnectTimeout != 15*time.Second {
		t.Errorf("ConnectTimeout = %v, want 15s", cfg.Transport.ConnectTimeout)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.Portal.CSRFHeader != "X-CSRF-TOKEN" {
		t.Errorf("CSRFHeader = %q", cfg.Portal.CSRFHeader)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Dashboard.AutoRefreshInterval != 30*time.Second {
		t.Errorf("AutoRefreshInterval = %v", cfg.Dashboard.AutoRefreshInterval)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("portal: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.Portal.BaseURL = "ftp://x" }, "base_url"},
		{"no csrf header", func(c *Config) { c.Portal.CSRFHeader = "" }, "csrf_header"},
		{"slow rescan", func(c *Config) { c.Filter.RescanInterval = 2 * time.Second }, "rescan_interval"},
		{"zero page", func(c *Config) { c.Filter.PageSize = 0 }, "page_size"},
		{"zero backoff", func(c *Config) { c.Transport.ReconnectBaseDelay = 0 }, "reconnect_base_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireCSRF(t *testing.T) {
	cfg := Default()
	if cfg.RequireCSRF() == nil {
		t.Error("default config has no token and should fail")
	}
	cfg.Portal.CSRFToken = "tok"
	if err := cfg.RequireCSRF(); err != nil {
		t.Errorf("RequireCSRF() = %v", err)
	}
}

func TestWebSocketURL(t *testing.T) {
	cfg := Default()
	if got := cfg.WebSocketURL(); got != "ws://127.0.0.1:8080/ws" {
		t.Errorf("WebSocketURL() = %q", got)
	}
	cfg.Portal.BaseURL = "https://portal.example.bg"
	cfg.Portal.WSPath = "/stomp"
	if got := cfg.WebSocketURL(); got != "wss://portal.example.bg/stomp" {
		t.Errorf("WebSocketURL() = %q", got)
	}
}

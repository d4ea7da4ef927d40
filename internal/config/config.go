// Package config loads the console's YAML configuration. Load starts from
// Default and unmarshals the file over it, so unspecified fields keep
// their defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Portal    PortalConfig    `yaml:"portal"`
	Transport TransportConfig `yaml:"transport"`
	Cache     CacheConfig     `yaml:"cache"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Filter    FilterConfig    `yaml:"filter"`
	State     StateConfig     `yaml:"state"`
	Log       LogConfig       `yaml:"log"`
}

type PortalConfig struct {
	BaseURL       string `yaml:"base_url"`
	WSPath        string `yaml:"ws_path"`
	DashboardPath string `yaml:"dashboard_path"`
	CSRFHeader    string `yaml:"csrf_header"`
	CSRFToken     string `yaml:"csrf_token"`
	SessionCookie string `yaml:"session_cookie"`
	Token         string `yaml:"token"`
}

type TransportConfig struct {
	HeartbeatOutgoing    time.Duration `yaml:"heartbeat_outgoing"`
	HeartbeatIncoming    time.Duration `yaml:"heartbeat_incoming"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type DashboardConfig struct {
	AutoRefreshInterval  time.Duration `yaml:"auto_refresh_interval"`
	CountersRefreshDelay time.Duration `yaml:"counters_refresh_delay"`
	InitialTab           string        `yaml:"initial_tab"`
}

type FilterConfig struct {
	RescanInterval time.Duration `yaml:"rescan_interval"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	AmountDebounce time.Duration `yaml:"amount_debounce"`
	PageSize       int           `yaml:"page_size"`
}

type StateConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:       "http://127.0.0.1:8080",
			WSPath:        "/ws",
			DashboardPath: "/admin/dashboard",
			CSRFHeader:    "X-CSRF-TOKEN",
		},
		Transport: TransportConfig{
			HeartbeatOutgoing:    10 * time.Second,
			HeartbeatIncoming:    10 * time.Second,
			ConnectTimeout:       15 * time.Second,
			ReconnectBaseDelay:   3 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			AutoRefreshInterval:  30 * time.Second,
			CountersRefreshDelay: 250 * time.Millisecond,
			InitialTab:           "urgent",
		},
		Filter: FilterConfig{
			RescanInterval: time.Second,
			SearchDebounce: 300 * time.Millisecond,
			AmountDebounce: 500 * time.Millisecond,
			PageSize:       20,
		},
		State: StateConfig{
			Path: "dashboard-state.db",
		},
		Log: LogConfig{
			File:  "dashboard-tui.log",
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks fields the dashboard cannot start without. The CSRF
// token is checked separately by RequireCSRF because it may still be
// discovered from the dashboard page after loading.
func (c *Config) Validate() error {
	var problems []string

	u, err := url.Parse(c.Portal.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("portal.base_url %q is not an http(s) URL", c.Portal.BaseURL))
	}
	if c.Portal.CSRFHeader == "" {
		problems = append(problems, "portal.csrf_header is empty")
	}
	if c.Transport.MaxReconnectAttempts < 0 {
		problems = append(problems, "transport.max_reconnect_attempts must not be negative")
	}
	if c.Transport.ReconnectBaseDelay <= 0 {
		problems = append(problems, "transport.reconnect_base_delay must be positive")
	}
	if c.Filter.RescanInterval <= 0 || c.Filter.RescanInterval > time.Second {
		problems = append(problems, "filter.rescan_interval must be within (0, 1s]")
	}
	if c.Filter.PageSize <= 0 {
		problems = append(problems, "filter.page_size must be positive")
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireCSRF reports a missing CSRF token.
func (c *Config) RequireCSRF() error {
	if strings.TrimSpace(c.Portal.CSRFToken) == "" {
		return errors.New("CSRF token is missing (portal.csrf_token and dashboard page meta)")
	}
	return nil
}

// WebSocketURL derives the push endpoint from the base URL:
// http://host:port + /ws → ws://host:port/ws.
func (c *Config) WebSocketURL() string {
	u, err := url.Parse(c.Portal.BaseURL)
	if err != nil {
		return "ws://127.0.0.1:8080/ws"
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, u.Host, c.Portal.WSPath)
}

// Package config loads and validates the zonegate YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Backends  BackendsConfig  `yaml:"backends"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // default: 60s
	AllowedIPs   []string      `yaml:"allowed_ips"`   // IPs/CIDRs allowed to reach the API (empty = allow all)
}

// StorageConfig contains storage settings.
type StorageConfig struct {
	Path            string `yaml:"path"`              // bbolt database (credentials, realms, roots)
	ActivityLogPath string `yaml:"activity_log_path"` // sqlite database (audit trail)
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SecurityConfig contains authorization safety guards.
type SecurityConfig struct {
	// AllowAnyIPRange permits realm whitelists that cover the entire
	// address space (0.0.0.0/0, ::/0). Off by default: such an entry
	// is treated as a configuration error and the request is denied.
	AllowAnyIPRange bool `yaml:"allow_any_ip_range"`

	// TrustProxyHeaders enables client address extraction from
	// X-Forwarded-For / X-Real-IP. Off by default: a direct client can
	// set those headers freely, so they are honored only when a proxy
	// in front of the service overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// RateLimitConfig contains update rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	Global       *LimitValues `yaml:"global,omitempty"`
	DefaultToken *LimitValues `yaml:"default_token,omitempty"`
	DefaultIP    *LimitValues `yaml:"default_ip,omitempty"`

	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

// LimitValues contains rate limit values.
type LimitValues struct {
	UpdatesPerHour int `yaml:"updates_per_hour"`
	UpdatesPerDay  int `yaml:"updates_per_day"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"` // IPs/CIDRs allowed to scrape
}

// BackendsConfig describes the configured DNS providers. A managed
// domain root references one of them by name.
type BackendsConfig struct {
	PowerDNS *PowerDNSConfig `yaml:"powerdns,omitempty"`
	Netcup   *NetcupConfig   `yaml:"netcup,omitempty"`
}

// PowerDNSConfig contains PowerDNS API settings.
type PowerDNSConfig struct {
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	ServerID string `yaml:"server_id"` // Default: localhost
}

// NetcupConfig contains Netcup CCP webservice settings.
type NetcupConfig struct {
	Endpoint       string `yaml:"endpoint"` // empty = production endpoint
	CustomerNumber string `yaml:"customer_number"`
	APIKey         string `yaml:"api_key"`
	APIPassword    string `yaml:"api_password"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration.
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/zonegate/zonegate.db"
	}
	if c.Storage.ActivityLogPath == "" {
		c.Storage.ActivityLogPath = "/var/lib/zonegate/activity.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.RateLimit.FlushInterval == 0 {
		c.RateLimit.FlushInterval = 10 * time.Second
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}

	if c.Backends.PowerDNS == nil && c.Backends.Netcup == nil {
		return fmt.Errorf("at least one DNS backend must be configured")
	}
	if p := c.Backends.PowerDNS; p != nil {
		if p.APIURL == "" || p.APIKey == "" {
			return fmt.Errorf("backends.powerdns requires api_url and api_key")
		}
	}
	if n := c.Backends.Netcup; n != nil {
		if n.CustomerNumber == "" || n.APIKey == "" || n.APIPassword == "" {
			return fmt.Errorf("backends.netcup requires customer_number, api_key and api_password")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Global == nil && c.RateLimit.DefaultToken == nil && c.RateLimit.DefaultIP == nil {
			return fmt.Errorf("rate_limit.enabled requires at least one limit")
		}
	}

	return nil
}

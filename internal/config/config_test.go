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
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
backends:
  powerdns:
    api_url: http://127.0.0.1:8081
    api_key: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Path != "/var/lib/zonegate/zonegate.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.ActivityLogPath != "/var/lib/zonegate/activity.db" {
		t.Errorf("ActivityLogPath = %q", cfg.Storage.ActivityLogPath)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Metrics.ListenAddr != ":9090" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics defaults = %q %q", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}
	if cfg.RateLimit.FlushInterval != 10*time.Second {
		t.Errorf("FlushInterval = %v", cfg.RateLimit.FlushInterval)
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
  allowed_ips:
    - 203.0.113.0/24
storage:
  path: /tmp/zg.db
  activity_log_path: /tmp/activity.db
logging:
  level: debug
  format: text
security:
  allow_any_ip_range: true
  trust_proxy_headers: true
rate_limit:
  enabled: true
  default_token:
    updates_per_hour: 60
    updates_per_day: 500
metrics:
  enabled: true
  listen_addr: ":9100"
backends:
  netcup:
    customer_number: "12345"
    api_key: key
    api_password: pass
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if len(cfg.Server.AllowedIPs) != 1 {
		t.Errorf("AllowedIPs = %v", cfg.Server.AllowedIPs)
	}
	if !cfg.Security.AllowAnyIPRange {
		t.Error("AllowAnyIPRange not set")
	}
	if !cfg.Security.TrustProxyHeaders {
		t.Error("TrustProxyHeaders not set")
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.DefaultToken.UpdatesPerHour != 60 {
		t.Error("rate limit not parsed")
	}
	if cfg.Backends.Netcup == nil || cfg.Backends.Netcup.CustomerNumber != "12345" {
		t.Error("netcup backend not parsed")
	}
	if cfg.Backends.PowerDNS != nil {
		t.Error("powerdns backend configured unexpectedly")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "no backend",
			content: `logging: {level: info}`,
		},
		{
			name: "powerdns missing key",
			content: `
backends:
  powerdns:
    api_url: http://127.0.0.1:8081
`,
		},
		{
			name: "netcup missing credentials",
			content: `
backends:
  netcup:
    customer_number: "12345"
`,
		},
		{
			name: "bad log level",
			content: `
logging:
  level: verbose
backends:
  powerdns: {api_url: http://x, api_key: k}
`,
		},
		{
			name: "bad log format",
			content: `
logging:
  format: xml
backends:
  powerdns: {api_url: http://x, api_key: k}
`,
		},
		{
			name: "rate limiting enabled without limits",
			content: `
rate_limit:
  enabled: true
backends:
  powerdns: {api_url: http://x, api_key: k}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

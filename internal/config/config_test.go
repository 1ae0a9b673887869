package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("backend:\n  base_url: http://localhost:8000\n"), false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Jobs.PollInterval != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.Jobs.PollInterval)
	}
	if cfg.Jobs.ChatPollInterval != 3*time.Second {
		t.Errorf("chat poll interval = %v, want 3s", cfg.Jobs.ChatPollInterval)
	}
	if cfg.Jobs.Timeout != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", cfg.Jobs.Timeout)
	}
	if cfg.Jobs.Retain != 10*time.Minute {
		t.Errorf("retain = %v, want 10m", cfg.Jobs.Retain)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("backend timeout = %v, want 30s", cfg.Backend.Timeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Gateway.Addr != ":8090" || cfg.Gateway.MetricsAddr != ":9090" {
		t.Errorf("unexpected gateway defaults: %+v", cfg.Gateway)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("redis ttl = %v, want 1h", cfg.Redis.TTL)
	}
	if cfg.History.Retention != 30*24*time.Hour {
		t.Errorf("retention = %v, want 720h", cfg.History.Retention)
	}
}

func TestParseDurations(t *testing.T) {
	raw := `
backend:
  base_url: http://localhost:8000
jobs:
  poll_interval: 500ms
  timeout: 1m
log:
  level: debug
  format: console
`
	cfg, err := Parse([]byte(raw), true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Jobs.PollInterval != 500*time.Millisecond || cfg.Jobs.Timeout != time.Minute {
		t.Errorf("unexpected jobs config: %+v", cfg.Jobs)
	}
	if cfg.Redis.SubmitLockTTL != time.Minute {
		t.Errorf("submit lock ttl should follow job timeout, got %v", cfg.Redis.SubmitLockTTL)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev runtime flag")
	}
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"missing base url": "log:\n  level: info\n",
		"bad log level":    "backend:\n  base_url: http://x\nlog:\n  level: loud\n",
		"bad key length":   "backend:\n  base_url: http://x\nsecurity:\n  encryption_key: short\n",
		"too many retries": "backend:\n  base_url: http://x\njobs:\n  submit_retries: 50\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw), false); err == nil {
				t.Fatal("expected validation error")
			} else if !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend:\n  base_url: http://backend:8000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://backend:8000" {
		t.Errorf("base url = %q", cfg.Backend.BaseURL)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Error("expected error for missing file")
	}
}

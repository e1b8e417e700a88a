package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
listen:
  api_port: 9090
  api_bind: 0.0.0.0

backend:
  base_url: http://localhost:5000
  request_timeout: 20s
  slow_threshold: 3s

cache:
  ttl: 2m
  sweep_interval: 5m

poll:
  stats_interval: 15s
  realtime_interval: 4s
  bot_info_every: 5
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.APIPort != 9090 {
		t.Errorf("expected api port 9090, got %d", cfg.Listen.APIPort)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("expected backend base url, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.SlowThreshold != 3*time.Second {
		t.Errorf("expected slow threshold 3s, got %v", cfg.Backend.SlowThreshold)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("expected cache ttl 2m, got %v", cfg.Cache.TTL)
	}
	if cfg.Poll.BotInfoEvery != 5 {
		t.Errorf("expected bot_info_every 5, got %d", cfg.Poll.BotInfoEvery)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_BACKEND_URL", "http://backend:8000")
	defer os.Unsetenv("TEST_BACKEND_URL")

	yaml := `
backend:
  base_url: ${TEST_BACKEND_URL}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.BaseURL != "http://backend:8000" {
		t.Errorf("expected substituted base url, got %s", cfg.Backend.BaseURL)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing base_url",
			yaml: `
listen:
  api_port: 8090
`,
		},
		{
			name: "malformed base_url",
			yaml: `
backend:
  base_url: "not a url"
`,
		},
		{
			name: "negative ttl",
			yaml: `
backend:
  base_url: http://localhost:5000
cache:
  ttl: -1m
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	yaml := `
backend:
  base_url: http://localhost:5000
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.APIPort != 8090 {
		t.Errorf("expected default api port 8090, got %d", cfg.Listen.APIPort)
	}
	if cfg.Listen.APIBind != "127.0.0.1" {
		t.Errorf("expected default bind 127.0.0.1, got %s", cfg.Listen.APIBind)
	}
	if cfg.Backend.SlowThreshold != 5*time.Second {
		t.Errorf("expected default slow threshold 5s, got %v", cfg.Backend.SlowThreshold)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected default ttl 5m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval != 10*time.Minute {
		t.Errorf("expected default sweep interval 10m, got %v", cfg.Cache.SweepInterval)
	}
	if cfg.Poll.StatsInterval != 10*time.Second {
		t.Errorf("expected default stats interval 10s, got %v", cfg.Poll.StatsInterval)
	}
	if cfg.Poll.RealtimeInterval != 5*time.Second {
		t.Errorf("expected default realtime interval 5s, got %v", cfg.Poll.RealtimeInterval)
	}
	if cfg.Poll.BotInfoEvery != 3 {
		t.Errorf("expected default bot_info_every 3, got %d", cfg.Poll.BotInfoEvery)
	}
}

func TestPollEnables(t *testing.T) {
	off := false
	p := PollConfig{RealtimeEnabled: &off}

	if !p.StatsOn() {
		t.Error("stats should default to enabled")
	}
	if p.RealtimeOn() {
		t.Error("realtime should be disabled when set to false")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

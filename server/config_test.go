package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/docrelay/docpipe"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.MaxPayloadBytes() != 20*1024*1024 {
		t.Errorf("MaxPayloadBytes = %d", cfg.MaxPayloadBytes())
	}
	pc := cfg.PipelineConfig()
	if pc.MaxPayloadSize != docpipe.DefaultMaxPayloadSize || pc.DecodeTimeout != docpipe.DefaultDecodeTimeout {
		t.Errorf("PipelineConfig = %+v", pc)
	}
}

func TestLoadConfig(t *testing.T) {
	yaml := `
listen: ":9090"
service_name: "docs"
log_level: debug
max_payload_mb: 5
decode_timeout: 15s
reload_interval: 2s
observability_db: "data/obs.db"
classify:
  - format: html
    contains: ["text/html"]
  - format: pdf
    contains: ["pdf"]
  - format: text
    prefixes: ["text/"]
    empty: true
rate_limit:
  rps: 2
  burst: 4
  trust_proxy: true
mcp:
  enabled: true
`
	path := filepath.Join(t.TempDir(), "docrelay.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.ServiceName != "docs" {
		t.Errorf("Listen/ServiceName = %q/%q", cfg.Listen, cfg.ServiceName)
	}
	if cfg.DecodeTimeout != 15*time.Second {
		t.Errorf("DecodeTimeout = %v", cfg.DecodeTimeout)
	}
	if len(cfg.Classify) != 3 || cfg.Classify[0].Format != docpipe.FormatHTML || !cfg.Classify[2].Empty {
		t.Errorf("Classify = %+v", cfg.Classify)
	}
	if !cfg.MCP.Enabled || cfg.MCP.Path != "/mcp" {
		t.Errorf("MCP = %+v", cfg.MCP)
	}
	if cfg.RateLimit != (RateLimit{RPS: 2, Burst: 4, TrustProxy: true}) {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.ReloadInterval != 2*time.Second {
		t.Errorf("ReloadInterval = %v", cfg.ReloadInterval)
	}
	if cfg.Heartbeat != 15*time.Second {
		t.Errorf("Heartbeat default lost: %v", cfg.Heartbeat)
	}

	f, err := docpipe.Classify(cfg.PipelineConfig().Rules, "text/html")
	if err != nil || f != docpipe.FormatHTML {
		t.Errorf("configured table: %q, %v", f, err)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen", func(c *Config) { c.Listen = "" }},
		{"no service", func(c *Config) { c.ServiceName = "" }},
		{"zero payload", func(c *Config) { c.MaxPayloadMB = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"unknown format", func(c *Config) { c.Classify = []docpipe.Rule{{Format: "epub", Contains: []string{"epub"}}} }},
		{"empty rule", func(c *Config) { c.Classify = []docpipe.Rule{{Format: docpipe.FormatPDF}} }},
		{"mcp path", func(c *Config) { c.MCP.Enabled = true; c.MCP.Path = "mcp" }},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }},
		{"no heartbeat", func(c *Config) { c.ObservabilityDB = "obs.db"; c.Heartbeat = 0 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

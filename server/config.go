package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/docrelay/docpipe"
)

// Config holds the full service configuration.
type Config struct {
	Listen               string         `yaml:"listen"`
	ServiceName          string         `yaml:"service_name"`
	LogLevel             string         `yaml:"log_level"`
	MaxPayloadMB         int64          `yaml:"max_payload_mb"`
	DecodeTimeout        time.Duration  `yaml:"decode_timeout"`
	Classify             []docpipe.Rule `yaml:"classify"`
	ObservabilityDB      string         `yaml:"observability_db"` // empty disables metrics
	Heartbeat            time.Duration  `yaml:"heartbeat_interval"`
	MetricsRetentionDays int            `yaml:"metrics_retention_days"`
	ReloadInterval       time.Duration  `yaml:"reload_interval"` // 0 disables config watching
	RateLimit            RateLimit      `yaml:"rate_limit"`
	MCP                  MCPConfig      `yaml:"mcp"`
}

// RateLimit bounds /extract and /command per client IP. RPS 0 disables it.
// TrustProxy keys clients by the first X-Forwarded-For hop; only set it when
// a proxy in front of the relay rewrites that header.
type RateLimit struct {
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	TrustProxy bool    `yaml:"trust_proxy"`
}

// MCPConfig configures the streamable HTTP MCP endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:               ":3000",
		ServiceName:          "extractor",
		LogLevel:             "info",
		MaxPayloadMB:         20,
		DecodeTimeout:        docpipe.DefaultDecodeTimeout,
		Heartbeat:            15 * time.Second,
		MetricsRetentionDays: 30,
		ReloadInterval:       5 * time.Second,
		MCP: MCPConfig{
			Enabled: false,
			Path:    "/mcp",
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.MaxPayloadMB <= 0 {
		return fmt.Errorf("max_payload_mb must be > 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	known := map[docpipe.Format]bool{
		docpipe.FormatPDF: true, docpipe.FormatOffice: true, docpipe.FormatText: true,
		docpipe.FormatODT: true, docpipe.FormatHTML: true,
	}
	for i, r := range c.Classify {
		if !known[r.Format] {
			return fmt.Errorf("classify[%d]: unknown format %q", i, r.Format)
		}
		if len(r.Contains) == 0 && len(r.Prefixes) == 0 && !r.Empty {
			return fmt.Errorf("classify[%d]: rule for %q matches nothing", i, r.Format)
		}
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be >= 0")
	}
	if c.ObservabilityDB != "" && c.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat_interval must be > 0 with observability_db")
	}
	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with /")
	}
	return nil
}

// MaxPayloadBytes returns the payload ceiling in bytes.
func (c *Config) MaxPayloadBytes() int64 { return c.MaxPayloadMB * 1024 * 1024 }

// PipelineConfig derives the extraction pipeline configuration.
func (c *Config) PipelineConfig() docpipe.Config {
	return docpipe.Config{
		MaxPayloadSize: c.MaxPayloadBytes(),
		DecodeTimeout:  c.DecodeTimeout,
		Rules:          c.Classify,
	}
}

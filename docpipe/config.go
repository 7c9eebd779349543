// CLAUDE:SUMMARY Configuration struct and defaults for the docpipe extraction service.
package docpipe

import (
	"log/slog"
	"time"
)

// DefaultMaxPayloadSize is the payload ceiling when none is configured (20 MiB).
const DefaultMaxPayloadSize int64 = 20 << 20

// DefaultDecodeTimeout bounds a single decoder call when none is configured.
const DefaultDecodeTimeout = 60 * time.Second

// Config configures the extraction pipeline.
type Config struct {
	// MaxPayloadSize is the largest payload accepted, in bytes.
	MaxPayloadSize int64 `json:"max_payload_size" yaml:"max_payload_size"`

	// DecodeTimeout bounds each decoder call. Negative disables the bound.
	DecodeTimeout time.Duration `json:"decode_timeout" yaml:"decode_timeout"`

	// Rules is the ordered classification table. Empty means DefaultRules().
	Rules []Rule `json:"rules" yaml:"rules"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxPayloadSize <= 0 {
		c.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if c.DecodeTimeout == 0 {
		c.DecodeTimeout = DefaultDecodeTimeout
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

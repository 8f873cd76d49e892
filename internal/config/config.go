// Package config defines the top-level configuration for enswatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ENSWATCH_* environment variables.
type Config struct {
	Node     NodeConfig     `toml:"node"`
	Pricing  PricingConfig  `toml:"pricing"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// NodeConfig holds the chain node connection and subscription parameters.
type NodeConfig struct {
	// WsURL is the WebSocket endpoint of the chain node, e.g.
	// "wss://mainnet.infura.io/ws/v3/<project>".
	WsURL string `toml:"ws_url"`

	// RegistrarAddress is the ENS registrar contract emitting NameRegistered.
	RegistrarAddress string `toml:"registrar_address"`

	// OverlapBlocks is re-subscribed on reconnect: the new subscription starts
	// this many blocks before the last successfully delivered block, trading a
	// little duplicate delivery (absorbed by dedup) against missed logs.
	OverlapBlocks uint64 `toml:"overlap_blocks"`

	// MaxLookbackBlocks bounds how far behind the chain head a resumed
	// subscription may start.
	MaxLookbackBlocks uint64 `toml:"max_lookback_blocks"`

	// LogBuffer is the capacity of the internal raw-log channel between the
	// subscriber and the pipeline.
	LogBuffer int `toml:"log_buffer"`

	// MaxConnectAttempts bounds the initial subscribe retries before the
	// failure is treated as fatal. Re-subscribes after a successful start
	// retry indefinitely.
	MaxConnectAttempts int `toml:"max_connect_attempts"`
}

// PricingConfig holds CoinMarketCap API parameters and cache tuning.
type PricingConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`

	// TTL is how long a fetched price is served as fresh.
	TTL duration `toml:"ttl"`

	// Grace extends a stale entry's usability when the upstream fetch fails.
	Grace duration `toml:"grace"`
}

// PipelineConfig holds filtering and enrichment parameters.
type PipelineConfig struct {
	// ValueThreshold discards transfers whose scaled value is below this many
	// token units.
	ValueThreshold float64 `toml:"value_threshold"`

	// Concurrency caps the number of in-flight enrichment lookups.
	Concurrency int `toml:"concurrency"`

	// DedupCapacity bounds the recently-seen log key window; the oldest key is
	// evicted on overflow.
	DedupCapacity int `toml:"dedup_capacity"`
}

// ServerConfig holds HTTP/WebSocket server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// StaticDir, when set, is served at "/" for the dashboard assets.
	StaticDir string `toml:"static_dir"`

	// SubscriberQueue is each subscriber's outbound buffer; a subscriber whose
	// queue overflows is disconnected.
	SubscriberQueue int `toml:"subscriber_queue"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Node: NodeConfig{
			RegistrarAddress:   "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e",
			OverlapBlocks:      16,
			MaxLookbackBlocks:  1000,
			LogBuffer:          512,
			MaxConnectAttempts: 5,
		},
		Pricing: PricingConfig{
			BaseURL: "https://pro-api.coinmarketcap.com/v1",
			TTL:     duration{5 * time.Minute},
			Grace:   duration{10 * time.Minute},
		},
		Pipeline: PipelineConfig{
			ValueThreshold: 10.0,
			Concurrency:    8,
			DedupCapacity:  8192,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            3001,
			CORSOrigins:     []string{"http://localhost:3000"},
			SubscriberQueue: 256,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. A non-nil error here is a
// fatal startup condition: the process must not start accepting subscribers.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Node
	if strings.TrimSpace(c.Node.WsURL) == "" {
		errs = append(errs, "node: ws_url must not be empty")
	}
	if c.Node.RegistrarAddress == "" || !common.IsHexAddress(c.Node.RegistrarAddress) {
		errs = append(errs, fmt.Sprintf("node: registrar_address %q is not a valid address", c.Node.RegistrarAddress))
	}
	if c.Node.LogBuffer < 1 {
		errs = append(errs, "node: log_buffer must be >= 1")
	}
	if c.Node.MaxConnectAttempts < 1 {
		errs = append(errs, "node: max_connect_attempts must be >= 1")
	}
	if c.Node.MaxLookbackBlocks > 0 && c.Node.OverlapBlocks > c.Node.MaxLookbackBlocks {
		errs = append(errs, "node: overlap_blocks must not exceed max_lookback_blocks")
	}

	// Pricing
	if strings.TrimSpace(c.Pricing.BaseURL) == "" {
		errs = append(errs, "pricing: base_url must not be empty")
	}
	if strings.TrimSpace(c.Pricing.APIKey) == "" {
		errs = append(errs, "pricing: api_key must not be empty")
	}
	if c.Pricing.TTL.Duration <= 0 {
		errs = append(errs, "pricing: ttl must be positive")
	}
	if c.Pricing.Grace.Duration < 0 {
		errs = append(errs, "pricing: grace must not be negative")
	}

	// Pipeline
	if c.Pipeline.ValueThreshold < 0 {
		errs = append(errs, "pipeline: value_threshold must not be negative")
	}
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, "pipeline: concurrency must be >= 1")
	}
	if c.Pipeline.DedupCapacity < 1 {
		errs = append(errs, "pipeline: dedup_capacity must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.SubscriberQueue < 1 {
			errs = append(errs, "server: subscriber_queue must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

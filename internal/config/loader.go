package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ENSWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ENSWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Node ──
	setStr(&cfg.Node.WsURL, "ENSWATCH_NODE_WS_URL")
	setStr(&cfg.Node.WsURL, "ETHEREUM_RPC_URL") // compatibility alias
	setStr(&cfg.Node.RegistrarAddress, "ENSWATCH_NODE_REGISTRAR_ADDRESS")
	setUint64(&cfg.Node.OverlapBlocks, "ENSWATCH_NODE_OVERLAP_BLOCKS")
	setUint64(&cfg.Node.MaxLookbackBlocks, "ENSWATCH_NODE_MAX_LOOKBACK_BLOCKS")
	setInt(&cfg.Node.LogBuffer, "ENSWATCH_NODE_LOG_BUFFER")
	setInt(&cfg.Node.MaxConnectAttempts, "ENSWATCH_NODE_MAX_CONNECT_ATTEMPTS")

	// ── Pricing ──
	setStr(&cfg.Pricing.BaseURL, "ENSWATCH_PRICING_BASE_URL")
	setStr(&cfg.Pricing.APIKey, "ENSWATCH_PRICING_API_KEY")
	setStr(&cfg.Pricing.APIKey, "CMC_API_KEY") // compatibility alias
	setDuration(&cfg.Pricing.TTL, "ENSWATCH_PRICING_TTL")
	setDuration(&cfg.Pricing.Grace, "ENSWATCH_PRICING_GRACE")

	// ── Pipeline ──
	setFloat64(&cfg.Pipeline.ValueThreshold, "ENSWATCH_PIPELINE_VALUE_THRESHOLD")
	setInt(&cfg.Pipeline.Concurrency, "ENSWATCH_PIPELINE_CONCURRENCY")
	setInt(&cfg.Pipeline.DedupCapacity, "ENSWATCH_PIPELINE_DEDUP_CAPACITY")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ENSWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ENSWATCH_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setStringSlice(&cfg.Server.CORSOrigins, "ENSWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.StaticDir, "ENSWATCH_SERVER_STATIC_DIR")
	setInt(&cfg.Server.SubscriberQueue, "ENSWATCH_SERVER_SUBSCRIBER_QUEUE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ENSWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

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
// built-in defaults, applies WIRECLIENT_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known WIRECLIENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Connection ──
	setStr(&cfg.Connection.Address, "WIRECLIENT_CONNECTION_ADDRESS")
	setStr(&cfg.Connection.AccessToken, "WIRECLIENT_CONNECTION_ACCESS_TOKEN")
	setDuration(&cfg.Connection.CommandTimeout, "WIRECLIENT_CONNECTION_COMMAND_TIMEOUT")
	setDuration(&cfg.Connection.MaxServerPingDelay, "WIRECLIENT_CONNECTION_MAX_SERVER_PING_DELAY")
	setDuration(&cfg.Connection.HandshakeTimeout, "WIRECLIENT_CONNECTION_HANDSHAKE_TIMEOUT")

	// ── Reachability ──
	setStr(&cfg.Reachability.ProbeAddr, "WIRECLIENT_REACHABILITY_PROBE_ADDR")
	setDuration(&cfg.Reachability.Timeout, "WIRECLIENT_REACHABILITY_TIMEOUT")
	setDuration(&cfg.Reachability.Interval, "WIRECLIENT_REACHABILITY_INTERVAL")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "WIRECLIENT_METRICS_ENABLED")

	// ── Diag ──
	setBool(&cfg.Diag.Enabled, "WIRECLIENT_DIAG_ENABLED")
	setStr(&cfg.Diag.Addr, "WIRECLIENT_DIAG_ADDR")
	setStringSlice(&cfg.Diag.AllowedOrigins, "WIRECLIENT_DIAG_ALLOWED_ORIGINS")

	// ── Alert ──
	setStr(&cfg.Alert.DiscordWebhookURL, "WIRECLIENT_ALERT_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Alert.TelegramToken, "WIRECLIENT_ALERT_TELEGRAM_TOKEN")
	setStr(&cfg.Alert.TelegramChatID, "WIRECLIENT_ALERT_TELEGRAM_CHAT_ID")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "WIRECLIENT_LOG_LEVEL")
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

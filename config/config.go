// Package config defines the top-level configuration for a wireclient-based
// process and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WIRECLIENT_* environment
// variables.
type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	Reachability ReachabilityConfig `toml:"reachability"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Diag       DiagConfig       `toml:"diag"`
	Alert      AlertConfig      `toml:"alert"`
	LogLevel   string           `toml:"log_level"`
}

// ConnectionConfig holds the parameters of the Connection Manager.
type ConnectionConfig struct {
	Address            string   `toml:"address"`
	AccessToken         string   `toml:"access_token"`
	CommandTimeout      duration `toml:"command_timeout"`
	MaxServerPingDelay  duration `toml:"max_server_ping_delay"`
	HandshakeTimeout    duration `toml:"handshake_timeout"`
}

// ReachabilityConfig holds the parameters of the Network Reachability Gate.
type ReachabilityConfig struct {
	ProbeAddr string   `toml:"probe_addr"`
	Timeout   duration `toml:"timeout"`
	Interval  duration `toml:"interval"`
}

// MetricsConfig controls the optional Prometheus metrics sink.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DiagConfig controls the optional diagnostics HTTP server.
type DiagConfig struct {
	Enabled        bool     `toml:"enabled"`
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AlertConfig holds credentials for the alerting notifiers fired on
// irrecoverable disconnects and repeated ping timeouts.
type AlertConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
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
		Connection: ConnectionConfig{
			CommandTimeout:     duration{10 * time.Second},
			MaxServerPingDelay: duration{5 * time.Second},
			HandshakeTimeout:   duration{10 * time.Second},
		},
		Reachability: ReachabilityConfig{
			ProbeAddr: "1.1.1.1:443",
			Timeout:   duration{3 * time.Second},
			Interval:  duration{5 * time.Second},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Diag: DiagConfig{
			Enabled:        true,
			Addr:           ":8090",
			AllowedOrigins: []string{},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Connection.Address == "" {
		errs = append(errs, "connection: address must not be empty")
	}
	if c.Connection.CommandTimeout.Duration <= 0 {
		errs = append(errs, "connection: command_timeout must be > 0")
	}
	if c.Connection.MaxServerPingDelay.Duration <= 0 {
		errs = append(errs, "connection: max_server_ping_delay must be > 0")
	}
	if c.Connection.HandshakeTimeout.Duration <= 0 {
		errs = append(errs, "connection: handshake_timeout must be > 0")
	}

	if c.Reachability.ProbeAddr == "" {
		errs = append(errs, "reachability: probe_addr must not be empty")
	}
	if c.Reachability.Timeout.Duration <= 0 {
		errs = append(errs, "reachability: timeout must be > 0")
	}
	if c.Reachability.Interval.Duration <= 0 {
		errs = append(errs, "reachability: interval must be > 0")
	}

	if c.Diag.Enabled && c.Diag.Addr == "" {
		errs = append(errs, "diag: addr must not be empty when enabled")
	}

	if (c.Alert.TelegramToken == "") != (c.Alert.TelegramChatID == "") {
		errs = append(errs, "alert: telegram_token and telegram_chat_id must both be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	out.Connection = cfg.Connection
	redact(&out.Connection.AccessToken)

	out.Alert = cfg.Alert
	redact(&out.Alert.DiscordWebhookURL)
	redact(&out.Alert.TelegramToken)

	// Copy slices so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Diag.AllowedOrigins != nil {
		out.Diag.AllowedOrigins = make([]string, len(cfg.Diag.AllowedOrigins))
		copy(out.Diag.AllowedOrigins, cfg.Diag.AllowedOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redaction placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

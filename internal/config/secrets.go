package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Tradier.Token)
	redact(&out.Polygon.APIKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through
	// the redacted copy.
	out.Notify.Events = cloneSlice(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneSlice(cfg.Server.CORSOrigins)
	out.Providers.Order = cloneSlice(cfg.Providers.Order)
	out.Refresh.Watchlists = cloneSlice(cfg.Refresh.Watchlists)
	out.Scan.Tolerances = cloneSlice(cfg.Scan.Tolerances)
	out.Scan.Defaults.TargetDTEs = cloneSlice(cfg.Scan.Defaults.TargetDTEs)
	if cfg.Providers.Tuning != nil {
		out.Providers.Tuning = make(map[string]ProviderTuning, len(cfg.Providers.Tuning))
		for k, v := range cfg.Providers.Tuning {
			out.Providers.Tuning[k] = v
		}
	}
	if cfg.Refresh.Seed != nil {
		out.Refresh.Seed = make(map[string][]string, len(cfg.Refresh.Seed))
		for k, v := range cfg.Refresh.Seed {
			out.Refresh.Seed[k] = cloneSlice(v)
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

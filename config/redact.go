package config

const (
	redactedConfigured = "configured"
	redactedMissing    = "missing"
)

// Redacted returns the configuration with every secret replaced by
// "configured" or "missing".
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"domain":               c.Domain,
		"record_type":          c.RecordType,
		"ttl":                  c.TTL,
		"primary_ip":           c.PrimaryIP,
		"backup_ip":            c.BackupIP,
		"check_interval":       c.CheckInterval.String(),
		"latency_threshold_ms": c.LatencyThresholdMS,
		"failure_threshold":    c.FailureThreshold,
		"stability_period":     c.StabilityPeriod.String(),
		"success_threshold":    c.Thresholds().SuccessThreshold,
		"probe_timeout":        c.ProbeTimeout.String(),
		"provider_timeout":     c.ProviderTimeout.String(),
		"startup_reconcile":    c.StartupReconcile,
		"leader_lock":          c.LeaderLock,
		"cloudflare": map[string]any{
			"zone_id":   redact(c.Cloudflare.ZoneID),
			"api_token": redact(c.Cloudflare.APIToken),
		},
		"secret_source": c.Secrets.Source,
		"state": map[string]any{
			"backend": c.State.Backend,
			"key":     c.State.Key,
		},
		"http": map[string]any{
			"override_token": redact(c.HTTP.OverrideToken),
		},
		"nats": redact(c.NATS.URL),
	}
}

func redact(secret string) string {
	if secret == "" {
		return redactedMissing
	}
	return redactedConfigured
}

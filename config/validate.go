package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// placeholderPrefix marks values copied unchanged from the example configuration.
	placeholderPrefix = "your_"

	// minDuration is the shortest interval, period or timeout accepted.
	minDuration = time.Second
)

// Validate checks the configuration and returns a *ConfigurationError
// describing every problem found.
func (c *Config) Validate() error {
	var err error

	required := []struct {
		name  string
		value string
	}{
		{"DOMAIN", c.Domain},
		{"PRIMARY_IP", c.PrimaryIP},
		{"BACKUP_IP", c.BackupIP},
		{"CF_ZONE_ID", c.Cloudflare.ZoneID},
	}
	if c.Secrets.Source == SecretSourceEnv {
		required = append(required, struct {
			name  string
			value string
		}{"CF_API_TOKEN", c.Cloudflare.APIToken})
	}

	for _, r := range required {
		err = multierr.Append(err, checkRequired(r.name, r.value))
	}

	recordType := strings.ToUpper(c.RecordType)
	err = multierr.Append(err, checkAddress("PRIMARY_IP", c.PrimaryIP, recordType))
	err = multierr.Append(err, checkAddress("BACKUP_IP", c.BackupIP, recordType))

	if c.PrimaryIP != "" && c.PrimaryIP == c.BackupIP {
		err = multierr.Append(err, errors.New("PRIMARY_IP and BACKUP_IP must differ"))
	}

	if c.TTL < 1 {
		err = multierr.Append(err, fmt.Errorf("TTL must be positive, got %d", c.TTL))
	}
	err = multierr.Append(err, checkMinDuration("CHECK_INTERVAL", c.CheckInterval))
	err = multierr.Append(err, checkMinDuration("STABILITY_PERIOD", c.StabilityPeriod))
	err = multierr.Append(err, checkMinDuration("PROBE_TIMEOUT", c.ProbeTimeout))
	err = multierr.Append(err, checkMinDuration("PROVIDER_TIMEOUT", c.ProviderTimeout))
	err = multierr.Append(err, c.Thresholds().Validate())

	err = multierr.Append(err, checkOneOf("SECRET_SOURCE", c.Secrets.Source, SecretSourceEnv, SecretSourceVault))
	if c.Secrets.Source == SecretSourceVault {
		err = multierr.Append(err, c.Vault.validate())
	}

	err = multierr.Append(err, checkOneOf("STATE_BACKEND", c.State.Backend, BackendFile, BackendRedis, BackendMySQL, BackendConfigMap))
	if c.State.Backend == BackendMySQL && c.State.MySQLUser == "" {
		err = multierr.Append(err, errors.New("STATE_MYSQL_USER is required for the mysql backend"))
	}

	if err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}

func (v *Vault) validate() error {
	var err error
	switch v.Auth {
	case VaultAuthToken:
		err = multierr.Append(err, checkRequired("VAULT_TOKEN", v.Token))
	case VaultAuthAppRole:
		err = multierr.Append(err, checkRequired("VAULT_ROLE_ID", v.RoleID))
		err = multierr.Append(err, checkRequired("VAULT_SECRET_ID", v.SecretID))
	case VaultAuthKubernetes:
	default:
		err = multierr.Append(err, checkOneOf("VAULT_AUTH", v.Auth, VaultAuthToken, VaultAuthAppRole, VaultAuthKubernetes))
	}
	err = multierr.Append(err, checkRequired("VAULT_SECRET_PATH", v.SecretPath))
	return err
}

func checkRequired(name, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s is required", name)
	case IsPlaceholder(value):
		return fmt.Errorf("%s still holds the placeholder %q", name, value)
	default:
		return nil
	}
}

func checkMinDuration(name string, value time.Duration) error {
	if value < minDuration {
		return fmt.Errorf("%s must be at least %s, got %s", name, minDuration, value)
	}
	return nil
}

func checkOneOf(name, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}

// checkAddress requires an IPv4 address for A records and an IPv6 address
// for AAAA records. Other record types are not checked.
func checkAddress(name, value, recordType string) error {
	if value == "" || IsPlaceholder(value) {
		return nil
	}

	ip := net.ParseIP(value)
	switch recordType {
	case "A":
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%s must be an IPv4 address for A records, got %q", name, value)
		}
	case "AAAA":
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("%s must be an IPv6 address for AAAA records, got %q", name, value)
		}
	}
	return nil
}

// IsPlaceholder reports whether value is an unedited example value.
func IsPlaceholder(value string) bool {
	return strings.HasPrefix(strings.ToLower(value), placeholderPrefix)
}

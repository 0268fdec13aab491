// Package config loads the monitor configuration from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/viper"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
)

const (
	// defaultStateFile is used when STATE_FILE is not set.
	defaultStateFile = "failover_state.json"

	// azureStateFile is used on Azure App Service, where only /tmp is writable.
	azureStateFile = "/tmp/failover_state.json"
)

// Supported values of SECRET_SOURCE.
const (
	SecretSourceEnv   = "env"
	SecretSourceVault = "vault"
)

// Supported values of STATE_BACKEND.
const (
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendMySQL     = "mysql"
	BackendConfigMap = "configmap"
)

// Supported values of VAULT_AUTH.
const (
	VaultAuthToken      = "token"
	VaultAuthAppRole    = "approle"
	VaultAuthKubernetes = "kubernetes"
)

type (
	// Config is the complete monitor configuration.
	Config struct {
		// ConfigLocation is an optional file whose keys override the environment.
		ConfigLocation string `env:"CONFIG_LOCATION" mapstructure:"-"`

		// AzureSiteName is set by Azure App Service.
		AzureSiteName string `env:"WEBSITE_SITE_NAME" mapstructure:"-"`

		Domain     string `env:"DOMAIN" mapstructure:"domain"`
		RecordType string `env:"RECORD_TYPE" envDefault:"A" mapstructure:"record_type"`
		TTL        int    `env:"TTL" envDefault:"120" mapstructure:"ttl"`
		PrimaryIP  string `env:"PRIMARY_IP" mapstructure:"primary_ip"`
		BackupIP   string `env:"BACKUP_IP" mapstructure:"backup_ip"`

		CheckInterval      time.Duration `env:"CHECK_INTERVAL" envDefault:"30s" mapstructure:"check_interval"`
		LatencyThresholdMS float64       `env:"LATENCY_THRESHOLD_MS" envDefault:"100" mapstructure:"latency_threshold_ms"`
		FailureThreshold   uint          `env:"FAILURE_THRESHOLD" envDefault:"2" mapstructure:"failure_threshold"`
		StabilityPeriod    time.Duration `env:"STABILITY_PERIOD" envDefault:"10m" mapstructure:"stability_period"`

		ProbeTimeout     time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s" mapstructure:"probe_timeout"`
		ProbeErrorStatus int           `env:"PROBE_ERROR_STATUS" envDefault:"500" mapstructure:"probe_error_status"`
		ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s" mapstructure:"provider_timeout"`
		StartupReconcile bool          `env:"STARTUP_RECONCILE" envDefault:"true" mapstructure:"startup_reconcile"`

		// LeaderLock names the Kubernetes lease used for leader election. Empty disables it.
		LeaderLock string `env:"LEADER_LOCK" mapstructure:"leader_lock"`

		Cloudflare Cloudflare `envPrefix:"CF_" mapstructure:"cloudflare"`
		Secrets    Secrets    `envPrefix:"SECRET_" mapstructure:"secrets"`
		Vault      Vault      `envPrefix:"VAULT_" mapstructure:"vault"`
		State      State      `envPrefix:"STATE_" mapstructure:"state"`
		NATS       NATS       `envPrefix:"NATS_" mapstructure:"nats"`
		HTTP       HTTP       `mapstructure:"http"`
	}

	// Cloudflare configures the DNS provider.
	Cloudflare struct {
		ZoneID   string `env:"ZONE_ID" mapstructure:"zone_id"`
		APIToken string `env:"API_TOKEN" mapstructure:"api_token"`

		// RateLimit is the number of API calls allowed per second.
		RateLimit float64 `env:"RATE_LIMIT" envDefault:"4" mapstructure:"rate_limit"`
		Burst     int     `env:"RATE_BURST" envDefault:"4" mapstructure:"rate_burst"`
	}

	// Secrets selects where the Cloudflare API token is read from.
	Secrets struct {
		Source string `env:"SOURCE" envDefault:"env" mapstructure:"source"`
	}

	// Vault configures the Vault secret source.
	Vault struct {
		Address    string `env:"ADDR" envDefault:"http://vault-active.vault:8200" mapstructure:"address"`
		Auth       string `env:"AUTH" envDefault:"kubernetes" mapstructure:"auth"`
		Token      string `env:"TOKEN" mapstructure:"token"`
		RoleID     string `env:"ROLE_ID" mapstructure:"role_id"`
		SecretID   string `env:"SECRET_ID" mapstructure:"secret_id"`
		KubeRole   string `env:"KUBE_ROLE" mapstructure:"kube_role"`
		KVMount    string `env:"KV_MOUNT" envDefault:"secret" mapstructure:"kv_mount"`
		SecretPath string `env:"SECRET_PATH" envDefault:"failover/cloudflare" mapstructure:"secret_path"`
		TokenKey   string `env:"TOKEN_KEY" envDefault:"api_token" mapstructure:"token_key"`
	}

	// State selects and configures the state medium.
	State struct {
		Backend string `env:"BACKEND" envDefault:"file" mapstructure:"backend"`
		File    string `env:"FILE" mapstructure:"file"`

		// Key identifies the state in shared backends. Defaults to the domain.
		Key string `env:"KEY" mapstructure:"key"`

		RedisAddress  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379" mapstructure:"redis_address"`
		RedisPassword string `env:"REDIS_PASSWORD" mapstructure:"redis_password"`
		RedisDatabase int    `env:"REDIS_DATABASE" mapstructure:"redis_database"`

		MySQLHost     string `env:"MYSQL_HOST" envDefault:"localhost" mapstructure:"mysql_host"`
		MySQLPort     int    `env:"MYSQL_PORT" envDefault:"3306" mapstructure:"mysql_port"`
		MySQLUser     string `env:"MYSQL_USER" mapstructure:"mysql_user"`
		MySQLPassword string `env:"MYSQL_PASSWORD" mapstructure:"mysql_password"`
		MySQLDatabase string `env:"MYSQL_DATABASE" envDefault:"failover" mapstructure:"mysql_database"`

		ConfigMapName      string `env:"CONFIGMAP_NAME" envDefault:"failover-state" mapstructure:"configmap_name"`
		ConfigMapNamespace string `env:"CONFIGMAP_NAMESPACE" mapstructure:"configmap_namespace"`
	}

	// NATS configures event publishing. An empty URL disables it.
	NATS struct {
		URL           string `env:"URL" mapstructure:"url"`
		SubjectPrefix string `env:"SUBJECT_PREFIX" envDefault:"failover.events" mapstructure:"subject_prefix"`
	}

	// HTTP configures the servers.
	HTTP struct {
		APIPort        int  `env:"API_PORT" envDefault:"8080" mapstructure:"api_port"`
		MetricsPort    int  `env:"METRICS_PORT" envDefault:"9090" mapstructure:"metrics_port"`
		HealthPort     int  `env:"HEALTH_PORT" envDefault:"9091" mapstructure:"health_port"`
		MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true" mapstructure:"metrics_enabled"`

		// OverrideToken is the bearer token required by POST /failover and
		// POST /restore. The override routes are disabled while it is empty.
		OverrideToken string `env:"API_OVERRIDE_TOKEN" mapstructure:"override_token"`
	}
)

// Load reads the environment, overlays the config file when CONFIG_LOCATION
// is set, applies derived defaults and validates the result. The returned
// viper instance is nil when no config file is used.
func Load() (*Config, *viper.Viper, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	var vip *viper.Viper
	if cfg.ConfigLocation != "" {
		vip = viper.New()
		vip.SetConfigFile(cfg.ConfigLocation)
		if err := vip.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file into viper: %w", err)
		}
		if err := vip.Unmarshal(cfg, decodeOptions()); err != nil {
			return nil, nil, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, vip, nil
}

func (c *Config) applyDefaults() {
	if c.State.File == "" {
		c.State.File = defaultStateFile
		if c.IsAzure() {
			c.State.File = azureStateFile
		}
	}
	if c.State.Key == "" {
		c.State.Key = c.Domain
	}
}

// IsAzure reports whether the process runs on Azure App Service.
func (c *Config) IsAzure() bool {
	return c.AzureSiteName != ""
}

// Thresholds returns the decision engine thresholds.
func (c *Config) Thresholds() engine.Thresholds {
	return engine.NewThresholds(c.LatencyThresholdMS, c.FailureThreshold, c.StabilityPeriod, c.CheckInterval)
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// ConfigurationError reports a configuration the monitor cannot start with.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

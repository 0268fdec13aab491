// Package failover assembles the Cloudflare DNS failover monitor: the
// configured DNS provider, state backend and telemetry sinks around a
// monitor.Reconciler, the loop driving it and the servers exposing it.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jacobbrewer1/cloudflare-failover/api"
	"github.com/jacobbrewer1/cloudflare-failover/config"
	"github.com/jacobbrewer1/cloudflare-failover/dns"
	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/health"
	"github.com/jacobbrewer1/cloudflare-failover/k8s"
	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/metrics"
	"github.com/jacobbrewer1/cloudflare-failover/monitor"
	"github.com/jacobbrewer1/cloudflare-failover/probe"
	"github.com/jacobbrewer1/cloudflare-failover/secrets"
	"github.com/jacobbrewer1/cloudflare-failover/state"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

// providerCheckMaxFailures is the number of failed record reads in a row
// before the dns_provider health check reports down.
const providerCheckMaxFailures = 3

// ErrMonitorNotRegistered is returned by options that need WithMonitor to have run.
var ErrMonitorNotRegistered = errors.New("monitor has not been registered")

// WithDNSProvider replaces the Cloudflare provider built from the
// configuration. It must be applied before WithMonitor.
func WithDNSProvider(p dns.Provider) StartOption {
	return func(a *App) error {
		if p == nil {
			return errors.New("dns provider cannot be nil")
		}
		a.provider = p
		return nil
	}
}

// WithStateBackend connects whatever client the configured state backend
// needs. It must be applied before WithMonitor.
func WithStateBackend() StartOption {
	return func(a *App) error {
		switch backend := a.Config().State.Backend; backend {
		case config.BackendFile:
			return nil
		case config.BackendRedis:
			if a.redisPool != nil {
				return nil
			}
			return WithRedisPool()(a)
		case config.BackendMySQL:
			if a.db != nil {
				return nil
			}
			return WithMySQL()(a)
		case config.BackendConfigMap:
			if a.kubeClient != nil {
				return nil
			}
			return WithInClusterKubeClient()(a)
		default:
			return fmt.Errorf("unsupported state backend %q", backend)
		}
	}
}

// stateMedium returns the medium of the configured state backend.
func (a *App) stateMedium(ctx context.Context) (state.Medium, error) {
	st := a.Config().State
	switch st.Backend {
	case config.BackendFile:
		return state.NewFileMedium(st.File), nil
	case config.BackendRedis:
		return state.NewRedisMedium(a.RedisPool(), st.Key), nil
	case config.BackendMySQL:
		m := state.NewSQLMedium(a.DB(), st.Key)
		if err := m.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create state table: %w", err)
		}
		return m, nil
	case config.BackendConfigMap:
		ns := st.ConfigMapNamespace
		if ns == "" {
			ns = k8s.DeployedNamespace()
		}
		return state.NewConfigMapMedium(a.KubeClient(), ns, st.ConfigMapName), nil
	default:
		return nil, fmt.Errorf("unsupported state backend %q", st.Backend)
	}
}

// tokenSource returns where the Cloudflare API token is read from.
func (a *App) tokenSource() (secrets.Source, error) {
	cfg := a.Config()
	switch cfg.Secrets.Source {
	case config.SecretSourceEnv:
		return secrets.Static(cfg.Cloudflare.APIToken), nil
	case config.SecretSourceVault:
		if a.vaultClient == nil {
			if err := WithVaultClient()(a); err != nil {
				return nil, err
			}
		}
		return secrets.NewVault(a.vaultClient, cfg.Vault.SecretPath, cfg.Vault.TokenKey), nil
	default:
		return nil, fmt.Errorf("unsupported secret source %q", cfg.Secrets.Source)
	}
}

// dnsProvider returns the rate limited Cloudflare provider, or the provider
// registered with WithDNSProvider.
func (a *App) dnsProvider() (dns.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}

	cfg := a.Config()
	src, err := a.tokenSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret source: %w", err)
	}

	ctx, cancel := a.TimeoutContext(cfg.ProviderTimeout)
	defer cancel()

	token, err := src.APIToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cloudflare api token: %w", err)
	}

	cf, err := dns.NewCloudflare(
		logging.LoggerWithComponent(a.l, "cloudflare"),
		cfg.Cloudflare.ZoneID,
		cfg.Domain,
		cfg.RecordType,
		dns.WithTTL(cfg.TTL),
		dns.WithAPIToken(token, cfg.ProviderTimeout),
	)
	if err != nil {
		return nil, err
	}

	return dns.NewRateLimited(cf, rate.NewLimiter(rate.Limit(cfg.Cloudflare.RateLimit), cfg.Cloudflare.Burst)), nil
}

// sink returns the telemetry sinks: logs and metrics inline, NATS through
// an asynchronous fan-out when a NATS client is registered.
func (a *App) sink() telemetry.Sink {
	sinks := telemetry.Multi{
		telemetry.NewLog(logging.LoggerWithComponent(a.l, "events")),
		telemetry.NewPrometheus(metrics.NewFailover(a.registry)),
	}

	if a.natsClient != nil {
		l := logging.LoggerWithComponent(a.l, "nats")
		a.asyncSink = telemetry.NewAsync(l, map[string]telemetry.Sink{
			"nats": telemetry.NewNATS(l, a.natsClient, a.Config().NATS.SubjectPrefix),
		})
		sinks = append(sinks, a.asyncSink)
	}

	return sinks
}

// WithMonitor builds the reconciler and its loop from the configuration and
// loads the persisted state. WithStateBackend, WithLeaderElection,
// WithNatsClient and WithDNSProvider must come before it when used.
func WithMonitor() StartOption {
	return func(a *App) error {
		cfg := a.Config()
		l := logging.LoggerWithComponent(a.l, "monitor")

		provider, err := a.dnsProvider()
		if err != nil {
			return fmt.Errorf("failed to create dns provider: %w", err)
		}
		a.provider = provider

		medium, err := a.stateMedium(a.baseCtx)
		if err != nil {
			return fmt.Errorf("failed to create state medium: %w", err)
		}

		th := cfg.Thresholds()
		if err := th.Validate(); err != nil {
			return &config.ConfigurationError{Err: err}
		}

		a.reconciler = monitor.NewReconciler(
			l,
			monitor.Targets{
				Domain:     cfg.Domain,
				RecordType: cfg.RecordType,
				PrimaryIP:  cfg.PrimaryIP,
				BackupIP:   cfg.BackupIP,
			},
			provider,
			probe.NewHTTPProber(
				probe.WithTimeout(cfg.ProbeTimeout),
				probe.WithErrorStatus(cfg.ProbeErrorStatus),
			),
			engine.New(th),
			state.NewStore(logging.LoggerWithComponent(a.l, "state"), medium),
			monitor.WithSink(a.sink()),
			monitor.WithProviderTimeout(cfg.ProviderTimeout),
		)
		a.reconciler.Load(a.baseCtx)

		loopOpts := []monitor.LoopOption{
			monitor.WithInterval(cfg.CheckInterval),
			monitor.WithStartupReconciliation(cfg.StartupReconcile),
		}
		if a.leaderElection != nil {
			loopOpts = append(loopOpts, monitor.WithLeaderCheck(a.IsLeader), monitor.WithWakeup(a.LeaderChange()))
		}
		a.loop = monitor.NewLoop(l, a.reconciler, loopOpts...)

		a.liveCfg.Store(cfg)
		return nil
	}
}

// WithMonitorLoop runs the monitor loop for the life of the application and
// serves the status API and the health checks.
func WithMonitorLoop() StartOption {
	return func(a *App) error {
		if a.reconciler == nil || a.loop == nil {
			return ErrMonitorNotRegistered
		}
		cfg := a.Config()

		a.indefiniteAsyncTasks.Store("monitor", func(ctx context.Context) {
			if err := a.loop.Run(ctx); err != nil {
				a.l.Error("monitor loop failed", slog.Any(logging.KeyError, err))
			}
		})

		apiOpts := []api.Option{
			api.WithLoop(a.loop),
			api.WithConfig(a.redactedConfig),
			api.WithMiddleware(metrics.NewHTTP(a.registry).Middleware()...),
			api.WithOverrideToken(cfg.HTTP.OverrideToken),
		}
		if a.leaderElection != nil {
			apiOpts = append(apiOpts, api.WithLeaderCheck(a.IsLeader))
		}
		a.servers.Store("api", &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.APIPort),
			Handler:           api.NewRouter(logging.LoggerWithComponent(a.l, "api"), a.reconciler, apiOpts...),
			ReadHeaderTimeout: httpReadHeaderTimeout,
		})

		listener := health.WithCheckOnStatusChange(health.StandardStatusListener(logging.LoggerWithComponent(a.l, "health")))
		return WithHealthCheck(
			health.LoopCheck(a.loop.LivenessCheck, listener),
			health.FailoverCheck(func() bool {
				return a.reconciler.Status().IsFailedOver
			}, listener),
			health.ProviderCheck(a.provider, cfg.Domain, cfg.RecordType, providerCheckMaxFailures, listener),
		)(a)
	}
}

// ReloadConfig applies a changed config file: the engine thresholds are
// replaced and GET /config reports the new values. Everything else needs
// a restart.
func (a *App) ReloadConfig(next *config.Config) {
	if a.reconciler == nil {
		return
	}

	th := next.Thresholds()
	if err := th.Validate(); err != nil {
		a.l.Error("ignoring invalid thresholds", slog.Any(logging.KeyError, err))
		return
	}

	a.reconciler.Engine().SetThresholds(th)
	a.liveCfg.Store(next)

	a.l.Info("thresholds reloaded",
		slog.Float64(logging.KeyLatencyThreshold, th.LatencyThresholdMS),
		slog.Uint64(logging.KeyFailures, uint64(th.FailureThreshold)),
		slog.Uint64(logging.KeySuccesses, uint64(th.SuccessThreshold)),
	)
}

func (a *App) redactedConfig() map[string]any {
	if cfg := a.liveCfg.Load(); cfg != nil {
		return cfg.Redacted()
	}
	return a.Config().Redacted()
}

package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	"k8s.io/klog/v2"

	"github.com/jacobbrewer1/cloudflare-failover/config"
	"github.com/jacobbrewer1/cloudflare-failover/database"
	"github.com/jacobbrewer1/cloudflare-failover/health"
	"github.com/jacobbrewer1/cloudflare-failover/k8s"
	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/vault"
)

const (
	// leaderElectionLeaseDuration specifies the duration that non-leader candidates
	// will wait to forcefully acquire leadership if the current leader fails to renew.
	leaderElectionLeaseDuration = 15 * time.Second

	// leaderElectionRenewDeadline specifies the duration that the acting leader
	// will attempt to renew its leadership before giving up.
	leaderElectionRenewDeadline = 10 * time.Second

	// leaderElectionRetryPeriod specifies the interval between retries for leader election actions.
	leaderElectionRetryPeriod = 2 * time.Second

	// redisIdleTimeout closes pooled redis connections left idle for this long.
	redisIdleTimeout = 240 * time.Second

	// redisMaxIdle is the number of idle redis connections kept in the pool.
	redisMaxIdle = 3
)

var (
	// ErrNoHostname is a predefined error that indicates the hostname is not set.
	ErrNoHostname = errors.New("no hostname provided")
)

// AsyncTaskFunc defines a function type for asynchronous tasks.
type AsyncTaskFunc = func(context.Context)

// StartOption defines a function type for configuring the application during startup.
type StartOption = func(*App) error

// WithConfig registers the monitor configuration. vip is the viper instance
// that read CONFIG_LOCATION and may be nil.
func WithConfig(cfg *config.Config, vip *viper.Viper) StartOption {
	return func(a *App) error {
		if cfg == nil {
			return ErrNilConfig
		}
		a.cfg = cfg
		a.vip = vip
		a.metricsEnabled = cfg.HTTP.MetricsEnabled
		return nil
	}
}

// WithConfigWatchers calls fn with the new configuration whenever the config
// file changes. It is a no-op without a config file.
func WithConfigWatchers(fn ...func(*config.Config)) StartOption {
	return func(a *App) error {
		if a.vip == nil {
			a.l.Debug("no config file registered, skipping config watchers")
			return nil
		}

		config.Watch(logging.LoggerWithComponent(a.l, "config"), a.vip, a.Config(), func(next *config.Config) {
			for _, f := range fn {
				f(next)
			}
		})
		return nil
	}
}

// WithVaultClient logs in to Vault using the configured auth method.
func WithVaultClient() StartOption {
	return func(a *App) error {
		vc, err := newVaultClient(a.baseCtx, logging.LoggerWithComponent(a.l, "vault"), a.Config().Vault)
		if err != nil {
			return fmt.Errorf("error getting vault client: %w", err)
		}

		a.vaultClient = vc
		return nil
	}
}

func newVaultClient(ctx context.Context, l *slog.Logger, cfg config.Vault) (vault.Client, error) {
	var auth vault.ClientOption
	switch cfg.Auth {
	case config.VaultAuthToken:
		auth = vault.WithTokenAuth(cfg.Token)
	case config.VaultAuthAppRole:
		auth = vault.WithAppRoleAuth(cfg.RoleID, cfg.SecretID)
	case config.VaultAuthKubernetes:
		role := cfg.KubeRole
		if role == "" {
			role = k8s.ServiceAccountName()
		}
		auth = vault.WithKubernetesServiceAccountAuth(role)
	default:
		return nil, fmt.Errorf("%w: %q", vault.ErrInvalidAuth, cfg.Auth)
	}

	vc, err := vault.NewClient(
		vault.WithContext(ctx),
		vault.WithLogger(l),
		vault.WithAddr(cfg.Address),
		vault.WithKvv2Mount(cfg.KVMount),
		auth,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating vault client: %w", err)
	}
	return vc, nil
}

// WithMySQL connects to the configured MySQL database.
func WithMySQL() StartOption {
	return func(a *App) error {
		st := a.Config().State
		db, err := database.Open(a.baseCtx, database.MySQLDSN(
			st.MySQLUser,
			st.MySQLPassword,
			st.MySQLHost,
			st.MySQLPort,
			st.MySQLDatabase,
		))
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}

		a.db = db
		return nil
	}
}

// WithInClusterKubeClient is a StartOption that sets up the in-cluster Kubernetes client.
func WithInClusterKubeClient() StartOption {
	return func(a *App) error {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return fmt.Errorf("failed to get in-cluster config: %w", err)
		}

		kubeClient, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to create kube client: %w", err)
		}

		a.kubeClient = kubeClient
		return nil
	}
}

// WithKubeClient registers an existing Kubernetes client.
func WithKubeClient(kubeClient kubernetes.Interface) StartOption {
	return func(a *App) error {
		if kubeClient == nil {
			return errors.New("kube client cannot be nil")
		}
		a.kubeClient = kubeClient
		return nil
	}
}

// WithLeaderElection is a StartOption that sets up leader election using Kubernetes lease locks.
//
// Only the leader cycles the monitor and accepts manual overrides. Followers
// keep serving status.
func WithLeaderElection(lockName string) StartOption {
	return func(a *App) error {
		switch {
		case k8s.PodName() == "":
			return ErrNoHostname
		case lockName == "":
			return errors.New("lock name cannot be empty")
		}

		kubeClient := a.KubeClient()

		klog.SetSlogLogger(logging.LoggerWithComponent(a.l, "klog"))

		a.leaderChange = make(chan struct{}, 1)

		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock: &resourcelock.LeaseLock{
				LeaseMeta: metav1.ObjectMeta{
					Name:      lockName,
					Namespace: k8s.DeployedNamespace(),
				},
				Client: kubeClient.CoordinationV1(),
				LockConfig: resourcelock.ResourceLockConfig{
					Identity: k8s.PodName(),
				},
			},
			LeaseDuration: leaderElectionLeaseDuration,
			RenewDeadline: leaderElectionRenewDeadline,
			RetryPeriod:   leaderElectionRetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(context.Context) {
					a.l.Info("started leading")
				},
				OnStoppedLeading: func() {
					a.l.Info("stopped leading")
				},
				OnNewLeader: func(identity string) {
					a.l.Info("leader changed",
						slog.String(logging.KeyIdentity, identity),
					)

					select {
					case a.leaderChange <- struct{}{}:
					default:
						// A wakeup is already pending.
					}
				},
			},
			ReleaseOnCancel: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create leader election: %w", err)
		}

		a.leaderElection = le
		return nil
	}
}

// WithHealthCheck is a StartOption that sets up the health check server.
func WithHealthCheck(checks ...*health.Check) StartOption {
	return func(a *App) error {
		if _, exists := a.servers.Load("health"); exists {
			return errors.New("health check server already registered")
		}

		checker, err := health.NewChecker(health.WithCheckerChecks(checks...))
		if err != nil {
			return fmt.Errorf("error creating health checker: %w", err)
		}

		a.servers.Store("health", &http.Server{
			Addr:              fmt.Sprintf(":%d", a.Config().HTTP.HealthPort),
			Handler:           checker.Handler(),
			ReadHeaderTimeout: httpReadHeaderTimeout,
		})

		return nil
	}
}

// WithRedisPool is a StartOption that sets up the Redis connection pool used
// by the redis state backend.
func WithRedisPool() StartOption {
	return func(a *App) error {
		st := a.Config().State
		if st.RedisAddress == "" {
			return errors.New("redis address cannot be empty")
		}

		dialOpts := []redis.DialOption{
			redis.DialDatabase(st.RedisDatabase),
			redis.DialConnectTimeout(5 * time.Second),
		}
		if st.RedisPassword != "" {
			dialOpts = append(dialOpts, redis.DialPassword(st.RedisPassword))
		}

		pool := &redis.Pool{
			MaxIdle:     redisMaxIdle,
			IdleTimeout: redisIdleTimeout,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", st.RedisAddress, dialOpts...)
			},
			TestOnBorrow: func(c redis.Conn, t time.Time) error {
				if time.Since(t) < time.Minute {
					return nil
				}
				_, err := c.Do("PING")
				return err
			},
		}

		conn, err := pool.GetContext(a.baseCtx)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}
		_, err = conn.Do("PING")
		if closeErr := conn.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("error pinging redis: %w", err)
		}

		a.redisPool = pool
		return nil
	}
}

// WithMetricsEnabled is a StartOption that enables or disables metrics for the application.
func WithMetricsEnabled(metricsEnabled bool) StartOption {
	return func(a *App) error {
		a.metricsEnabled = metricsEnabled
		return nil
	}
}

// WithIndefiniteAsyncTask is a StartOption that sets up an indefinite asynchronous task.
func WithIndefiniteAsyncTask(name string, fn AsyncTaskFunc) StartOption {
	return func(a *App) error {
		a.indefiniteAsyncTasks.Store(name, fn)
		return nil
	}
}

// WithNatsClient is a StartOption that sets up the NATS client.
func WithNatsClient(target string) StartOption {
	return func(a *App) error {
		if target == "" {
			return errors.New("target cannot be empty")
		}

		nc, err := nats.Connect(target,
			nats.Name("cloudflare-failover"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}

		a.natsClient = nc
		return nil
	}
}

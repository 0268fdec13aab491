package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"

	"github.com/jacobbrewer1/cloudflare-failover/api"
	"github.com/jacobbrewer1/cloudflare-failover/config"
	"github.com/jacobbrewer1/cloudflare-failover/dns"
	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/monitor"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
	"github.com/jacobbrewer1/cloudflare-failover/vault"
	"github.com/jacobbrewer1/cloudflare-failover/version"
)

const (
	// httpReadHeaderTimeout specifies the maximum duration allowed to read HTTP request headers.
	httpReadHeaderTimeout = 10 * time.Second

	// shutdownTimeout specifies the maximum duration allowed for the application to shut down gracefully.
	shutdownTimeout = 15 * time.Second

	// defaultMetricsPort is used when no configuration has been registered.
	defaultMetricsPort = 9090
)

var (
	// ErrNilLogger is returned by NewApp when no logger is given.
	ErrNilLogger = errors.New("logger is nil")

	// ErrNilConfig is returned by options that need the configuration before WithConfig ran.
	ErrNilConfig = errors.New("configuration has not been registered")
)

// App owns every long lived component of the failover monitor: its servers,
// backing stores, the reconciler and the loop driving it.
type App struct {
	// l is the logger for the application.
	l *slog.Logger

	// baseCtx is the root context of every operation and is cancelled on shutdown.
	baseCtx context.Context

	// baseCtxCancel cancels baseCtx.
	baseCtxCancel context.CancelFunc

	// cfg is the validated monitor configuration.
	cfg *config.Config

	// liveCfg is cfg with any hot reloaded changes applied.
	liveCfg atomic.Pointer[config.Config]

	// isStartedChan is closed once Start has finished.
	isStartedChan chan struct{}

	// startOnce ensures that the start function is only called once.
	startOnce sync.Once

	// vip is set when the configuration came from a file.
	vip *viper.Viper

	// vaultClient reads the Cloudflare token when SECRET_SOURCE is vault.
	vaultClient vault.Client

	// metricsEnabled serves the registry on the metrics port.
	metricsEnabled bool

	// registry holds the application's metrics.
	registry *prometheus.Registry

	// servers is the list of servers for the application.
	servers sync.Map

	// shutdownOnce ensures that the shutdown function is only called once.
	shutdownOnce sync.Once

	// shutdownWg waits for servers and async tasks to finish.
	shutdownWg *sync.WaitGroup

	// db backs the mysql state medium.
	db *sqlx.DB

	// kubeClient backs leader election and the configmap state medium.
	kubeClient kubernetes.Interface

	// leaderElection is set when LEADER_LOCK names a lease.
	leaderElection *leaderelection.LeaderElector

	// leaderChange is notified when the leader changes.
	leaderChange chan struct{}

	// redisPool backs the redis state medium.
	redisPool *redis.Pool

	// indefiniteAsyncTasks run until the application shuts down.
	indefiniteAsyncTasks sync.Map

	// natsClient publishes transition events.
	natsClient *nats.Conn

	// provider overrides the Cloudflare provider built from the configuration.
	provider dns.Provider

	// asyncSink delivers events to slow sinks.
	asyncSink *telemetry.Async

	// reconciler and loop are set by WithMonitor.
	reconciler *monitor.Reconciler
	loop       *monitor.Loop
}

// NewApp creates a new application with the given logger.
func NewApp(l *slog.Logger) (*App, error) {
	if l == nil {
		return nil, ErrNilLogger
	}

	baseCtx, baseCtxCancel := CoreContext()

	return &App{
		l:              l,
		baseCtx:        baseCtx,
		baseCtxCancel:  baseCtxCancel,
		isStartedChan:  make(chan struct{}),
		metricsEnabled: true,
		registry:       prometheus.NewRegistry(),
		shutdownWg:     new(sync.WaitGroup),
	}, nil
}

// Start applies opts in order, then starts the servers, leader election and
// async tasks they registered. It runs once; concurrent callers block until
// the first call has finished. A failed start shuts the application down.
func (a *App) Start(opts ...StartOption) error {
	var startErr error
	a.startOnce.Do(func() {
		defer close(a.isStartedChan)

		a.l.Info("starting application",
			slog.String(logging.KeyGitCommit, version.GitCommit()),
			slog.String(logging.KeyRuntime, version.Runtime()),
			slog.String(logging.KeyCommitTimestamp, version.CommitTimestamp().String()),
		)

		for _, opt := range opts {
			if err := opt(a); err != nil { // nolint:revive // Traditional error handling
				startErr = fmt.Errorf("failed to apply option: %w", err)
				return
			}
		}

		if a.metricsEnabled {
			a.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			metricsRouter := mux.NewRouter()
			metricsRouter.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
			a.servers.Store("metrics", &http.Server{
				Addr:              fmt.Sprintf(":%d", a.metricsPort()),
				Handler:           metricsRouter,
				ReadHeaderTimeout: httpReadHeaderTimeout,
			})
		}

		if a.asyncSink != nil {
			a.asyncSink.Start(a.baseCtx)
		}

		if a.leaderElection != nil {
			go a.leaderElection.Run(a.baseCtx)
		}

		a.servers.Range(func(name, srv any) bool {
			a.startServer(name.(string), srv.(*http.Server)) // nolint:forcetypeassert // Only Store sets these
			return true
		})

		a.indefiniteAsyncTasks.Range(func(name, fn any) bool {
			a.startAsyncTask(name.(string), true, fn.(AsyncTaskFunc)) // nolint:forcetypeassert // Only Store sets these
			return true
		})
	})

	a.waitUntilStarted()

	if startErr != nil {
		a.l.Error("error detected in application startup", slog.Any(logging.KeyError, startErr))
		go a.Shutdown()
	}

	return startErr
}

func (a *App) metricsPort() int {
	if a.cfg != nil {
		return a.cfg.HTTP.MetricsPort
	}
	return defaultMetricsPort
}

// startServer runs srv until it is shut down.
func (a *App) startServer(name string, srv *http.Server) {
	l := a.l.With(slog.String(logging.KeyServer, name), slog.String(logging.KeyPort, srv.Addr))

	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()

		l.Info("server listening")
		if err := srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
			l.Info("server shut down gracefully")
		} else {
			l.Error("server closed", slog.Any(logging.KeyError, err))
		}
	}()
}

// ChildContext returns a cancellable child of the application's base context.
func (a *App) ChildContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(a.baseCtx)
}

// TimeoutContext returns a child of the application's base context that
// is cancelled after timeout.
func (a *App) TimeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.baseCtx, timeout)
}

// WaitForEnd blocks until the application's base context is done, then runs onEnd.
func (a *App) WaitForEnd(onEnd ...func()) {
	<-a.baseCtx.Done()

	for _, fn := range onEnd {
		fn()
	}
}

// Shutdown cancels the base context, stops the servers, waits for the async
// tasks (the monitor loop persists its state on the way out) and closes the
// backing stores. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.baseCtxCancel != nil {
			a.baseCtxCancel()
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(a.baseCtx), shutdownTimeout)
		defer cancel()

		a.servers.Range(func(name, srv any) bool {
			server, ok := srv.(*http.Server)
			if !ok {
				return true
			}
			if err := server.Shutdown(ctx); err != nil {
				a.l.Error("failed to shutdown server",
					slog.Any(logging.KeyServer, name),
					slog.Any(logging.KeyError, err),
				)
			}
			return true
		})

		// Stores are closed only after the loop has saved its final state.
		a.shutdownWg.Wait()

		// Events queued by the last cycle or override are flushed before the
		// NATS connection drains.
		if a.asyncSink != nil {
			if err := a.asyncSink.Close(ctx); err != nil {
				a.l.Error("failed to deliver queued events", slog.Any(logging.KeyError, err))
			}
		}

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.l.Error("failed to close database", slog.Any(logging.KeyError, err))
			}
		}

		if a.redisPool != nil {
			if err := a.redisPool.Close(); err != nil {
				a.l.Error("failed to close redis pool", slog.Any(logging.KeyError, err))
			}
		}

		if a.natsClient != nil {
			if err := a.natsClient.Drain(); err != nil {
				a.l.Error("failed to drain nats connection", slog.Any(logging.KeyError, err))
			}
		}
	})

	a.shutdownWg.Wait()
}

// Logger returns the logger for the application.
func (a *App) Logger() *slog.Logger {
	if a.l == nil {
		panic("logger has not been registered")
	}
	return a.l
}

// Config returns the monitor configuration.
//
// Panics:
//   - If the configuration has not been registered.
func (a *App) Config() *config.Config {
	if a.cfg == nil {
		a.l.Error("configuration has not been registered")
		panic("configuration has not been registered")
	}
	return a.cfg
}

// VaultClient returns the vault client for the application.
//
// Panics:
//   - If the vault client has not been registered.
func (a *App) VaultClient() vault.Client {
	if a.vaultClient == nil {
		a.l.Error("vault client has not been registered")
		panic("vault client has not been registered")
	}
	return a.vaultClient
}

// Viper returns the viper instance for the application.
//
// Panics:
//   - If the viper instance has not been registered.
func (a *App) Viper() *viper.Viper {
	if a.vip == nil {
		a.l.Error("viper instance has not been registered")
		panic("viper instance has not been registered")
	}
	return a.vip
}

// DB returns the database connection for the application.
//
// Panics:
//   - If the database connection has not been registered.
func (a *App) DB() *sqlx.DB {
	if a.db == nil {
		a.l.Error("database connection has not been registered")
		panic("database connection has not been registered")
	}
	return a.db
}

// KubeClient returns the Kubernetes client for the application.
//
// Panics:
//   - If the Kubernetes client has not been registered.
func (a *App) KubeClient() kubernetes.Interface {
	if a.kubeClient == nil {
		a.l.Error("kubernetes client has not been registered")
		panic("kubernetes client has not been registered")
	}
	return a.kubeClient
}

// RedisPool returns the Redis connection pool for the application.
//
// Panics:
//   - If the Redis pool has not been registered.
func (a *App) RedisPool() *redis.Pool {
	if a.redisPool == nil {
		a.l.Error("redis pool has not been registered")
		panic("redis pool has not been registered")
	}
	return a.redisPool
}

// NatsClient returns the NATS client for the application.
//
// Panics:
//   - If the NATS client has not been registered.
func (a *App) NatsClient() *nats.Conn {
	if a.natsClient == nil {
		a.l.Error("nats client has not been registered")
		panic("nats client has not been registered")
	}
	return a.natsClient
}

// Reconciler returns the monitor reconciler.
//
// Panics:
//   - If WithMonitor has not been applied.
func (a *App) Reconciler() *monitor.Reconciler {
	if a.reconciler == nil {
		a.l.Error("reconciler has not been registered")
		panic("reconciler has not been registered")
	}
	return a.reconciler
}

// Loop returns the monitor loop.
//
// Panics:
//   - If WithMonitor has not been applied.
func (a *App) Loop() *monitor.Loop {
	if a.loop == nil {
		a.l.Error("monitor loop has not been registered")
		panic("monitor loop has not been registered")
	}
	return a.loop
}

// Registry returns the application's metrics registry.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Done returns a channel that is closed when the application's base context is done.
func (a *App) Done() <-chan struct{} {
	return a.baseCtx.Done()
}

// IsLeader reports whether this instance may run cycles and overrides. It is
// always true without leader election.
func (a *App) IsLeader() bool {
	if a.leaderElection == nil {
		return true
	}
	return a.leaderElection.IsLeader()
}

// LeaderChange returns a channel that is notified when the leader changes.
func (a *App) LeaderChange() <-chan struct{} {
	return a.leaderChange
}

// StartServer registers and starts srv under name. Gorilla routers without
// not found or method not allowed handlers get the API's JSON handlers.
func (a *App) StartServer(name string, srv *http.Server) error {
	if _, found := a.servers.Load(name); found {
		return fmt.Errorf("server %s already exists", name)
	}

	if muxRouter, ok := srv.Handler.(*mux.Router); ok {
		if muxRouter.NotFoundHandler == nil {
			muxRouter.NotFoundHandler = api.NotFoundHandler()
		}
		if muxRouter.MethodNotAllowedHandler == nil {
			muxRouter.MethodNotAllowedHandler = api.MethodNotAllowedHandler()
		}
	}

	a.servers.Store(name, srv)
	a.startServer(name, srv)
	return nil
}

// startAsyncTask runs fn in its own goroutine. When an indefinite task
// returns before the application is shutting down, the application is shut down.
func (a *App) startAsyncTask(name string, indefinite bool, fn AsyncTaskFunc) {
	a.l.Info("starting async task", slog.String(logging.KeyName, name))
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		fn(a.baseCtx)

		if indefinite && !errors.Is(a.baseCtx.Err(), context.Canceled) { // nolint:revive // Traditional error handling
			a.l.Error("indefinite async task closed before app shutdown",
				slog.String(logging.KeyName, name),
			)
			a.baseCtxCancel()
		}
	}()
}

// waitUntilStarted blocks until Start has finished.
func (a *App) waitUntilStarted() {
	if a.isStartedChan == nil {
		a.l.Error("isStartedChan has not been registered")
		panic("isStartedChan has not been registered")
	}
	<-a.isStartedChan
}

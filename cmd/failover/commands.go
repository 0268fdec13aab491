package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	failover "github.com/jacobbrewer1/cloudflare-failover"
	"github.com/jacobbrewer1/cloudflare-failover/api"
	"github.com/jacobbrewer1/cloudflare-failover/config"
	"github.com/jacobbrewer1/cloudflare-failover/monitor"
	"github.com/jacobbrewer1/cloudflare-failover/version"
)

// errUnhealthy makes the check command exit non-zero.
var errUnhealthy = errors.New("primary endpoint is unhealthy")

func newRootCommand(l *slog.Logger) *cobra.Command {
	var configLocation string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Cloudflare DNS failover monitor",
		Long:          `Watches a primary endpoint and points a Cloudflare DNS record at a backup address while the primary is unhealthy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if configLocation != "" {
				return os.Setenv("CONFIG_LOCATION", configLocation)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configLocation, "config", "c", "", "config file overriding the environment (sets CONFIG_LOCATION)")

	root.AddCommand(
		newMonitorCommand(l),
		newStatusCommand(l),
		newOverrideCommand(l, "failover", "Point the record at the backup address", (*monitor.Reconciler).ForceFailover),
		newOverrideCommand(l, "restore", "Point the record back at the primary address", (*monitor.Reconciler).ForceRestore),
		newCheckCommand(l),
		newVersionCommand(),
	)

	return root
}

// loadConfig reads and validates the configuration and returns the option
// registering it.
func loadConfig() (*config.Config, failover.StartOption, error) {
	cfg, vip, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, failover.WithConfig(cfg, vip), nil
}

// commonOptions registers the clients every command needs.
func commonOptions(cfg *config.Config) []failover.StartOption {
	var opts []failover.StartOption
	if cfg.LeaderLock != "" || cfg.State.Backend == config.BackendConfigMap {
		opts = append(opts, failover.WithInClusterKubeClient())
	}
	if cfg.NATS.URL != "" {
		opts = append(opts, failover.WithNatsClient(cfg.NATS.URL))
	}
	return append(opts, failover.WithStateBackend())
}

// runOnce starts an app without servers, runs fn against its reconciler and
// shuts it down.
func runOnce(l *slog.Logger, fn func(*failover.App) error) error {
	cfg, withConfig, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := failover.NewApp(l)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	opts := append([]failover.StartOption{withConfig, failover.WithMetricsEnabled(false)}, commonOptions(cfg)...)
	opts = append(opts, failover.WithMonitor())

	if err := app.Start(opts...); err != nil {
		return err
	}

	return fn(app)
}

func newMonitorCommand(l *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the monitor loop with the status API, metrics and health servers",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, withConfig, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := failover.NewApp(l)
			if err != nil {
				return err
			}

			opts := []failover.StartOption{
				withConfig,
				failover.WithConfigWatchers(app.ReloadConfig),
			}
			opts = append(opts, commonOptions(cfg)...)
			if cfg.LeaderLock != "" {
				opts = append(opts, failover.WithLeaderElection(cfg.LeaderLock))
			}
			opts = append(opts,
				failover.WithMonitor(),
				failover.WithMonitorLoop(),
			)

			if err := app.Start(opts...); err != nil {
				app.WaitForEnd(app.Shutdown)
				return err
			}

			app.WaitForEnd(app.Shutdown)
			return nil
		},
	}
}

func newStatusCommand(l *slog.Logger) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the persisted monitor state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(l, func(app *failover.App) error {
				r := app.Reconciler()
				if refresh {
					ctx, cancel := app.ChildContext()
					defer cancel()
					if err := r.Sync(ctx); err != nil {
						return err
					}
				}

				st := r.Status()
				return writeJSON(cmd.OutOrStdout(), api.StatusResponse{Status: st, Mode: st.Mode()})
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "read the current record content from Cloudflare first")

	return cmd
}

func newOverrideCommand(
	l *slog.Logger,
	use, short string,
	force func(*monitor.Reconciler, context.Context) (monitor.Outcome, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(l, func(app *failover.App) error {
				ctx, cancel := app.ChildContext()
				defer cancel()

				r := app.Reconciler()
				outcome, err := force(r, ctx)
				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), api.OverrideResponse{
					Outcome: outcome.String(),
					Status:  r.Status(),
				})
			})
		},
	}
}

// checkOutput is printed by the check command.
type checkOutput struct {
	RecordIP  string   `json:"record_ip"`
	Healthy   bool     `json:"healthy"`
	Success   bool     `json:"success"`
	LatencyMS *float64 `json:"latency_ms"`
	Error     *string  `json:"error"`
	Action    string   `json:"action"`
	Committed bool     `json:"committed"`
}

func newCheckCommand(l *slog.Logger) *cobra.Command {
	var startup bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single monitor cycle; the exit code reports the primary's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(l, func(app *failover.App) error {
				ctx, cancel := app.ChildContext()
				defer cancel()

				r := app.Reconciler()
				if startup {
					if _, err := r.Startup(ctx); err != nil {
						return err
					}
				}

				report, err := r.Cycle(ctx)
				if report == nil {
					return err
				}

				out := checkOutput{
					RecordIP:  report.RecordIP,
					Healthy:   report.Decision.Healthy,
					Success:   report.Check.Success,
					LatencyMS: report.Check.LatencyMS,
					Error:     report.Check.Error,
					Action:    report.Decision.Action.String(),
					Committed: report.Committed,
				}
				if writeErr := writeJSON(cmd.OutOrStdout(), out); writeErr != nil {
					return writeErr
				}

				if err != nil {
					return err
				}
				if !report.Decision.Healthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&startup, "startup", false, "run startup reconciliation before the cycle")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), version.Current())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

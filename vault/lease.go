package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	hashivault "github.com/hashicorp/vault/api"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

const (
	loggingKeyRenewedAt     = "renewed_at"
	loggingKeyLeaseDuration = "lease_duration"
)

// renewResult says why a lifetime watcher stopped.
type renewResult uint8

const (
	renewError renewResult = 1 << iota
	exitRequested
	expiring
)

type (
	// RenewalFunc obtains fresh credentials once the old ones cannot be renewed.
	RenewalFunc = func() (*hashivault.Secret, error)

	// watcher is the part of a LifetimeWatcher the renewal loop consumes.
	watcher interface {
		DoneCh() <-chan error
		RenewCh() <-chan *hashivault.RenewOutput
	}
)

// RenewLease keeps credentials alive until ctx is done. When Vault stops
// renewing them, renewFunc is called for new credentials and watching
// continues with those. It blocks and is meant to run in its own goroutine.
func RenewLease(
	ctx context.Context,
	l *slog.Logger,
	client ClientGetter,
	name string,
	credentials *hashivault.Secret,
	renewFunc RenewalFunc,
) error {
	l = l.With(slog.String(logging.KeyName, name))
	l.Debug("renewing lease")

	current := credentials
	for {
		w, err := client.Client().NewLifetimeWatcher(&hashivault.LifetimeWatcherInput{
			Secret:    current,
			Increment: int(time.Hour.Seconds()),
		})
		if err != nil {
			return fmt.Errorf("unable to initialize lifetime watcher: %w", err)
		}

		go w.Start()
		res, watchErr := watch(ctx, l, w)
		w.Stop()

		switch {
		case res&exitRequested != 0:
			l.Debug("lease renewal stopped")
			return nil
		case res&expiring != 0:
			if watchErr != nil {
				l.Warn("lease renewal ended", slog.Any(logging.KeyError, watchErr))
			}
			next, err := renewFunc()
			if err != nil {
				return fmt.Errorf("unable to renew credentials: %w", err)
			}
			current = next
			l.Debug("credentials replaced")
		}
	}
}

// watch waits until w stops renewing or ctx is done.
func watch(ctx context.Context, l *slog.Logger, w watcher) (renewResult, error) {
	for {
		select {
		case <-ctx.Done():
			return exitRequested, nil
		case err := <-w.DoneCh():
			return expiring, err
		case info := <-w.RenewCh():
			l.Debug("renewal successful",
				slog.String(loggingKeyRenewedAt, info.RenewedAt.String()),
				slog.String(loggingKeyLeaseDuration, fmt.Sprintf("%ds", info.Secret.LeaseDuration)),
			)
		}
	}
}

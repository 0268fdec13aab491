package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacobbrewer1/cloudflare-failover/dns"
)

// ErrFailedOver is reported while traffic is on the backup endpoint.
var ErrFailedOver = errors.New("traffic is on the backup endpoint")

// LoopCheck is up while the monitor loop keeps cycling.
func LoopCheck(liveness CheckFunc, opts ...CheckOption) *Check {
	return NewCheck("monitor_loop", liveness, opts...)
}

// FailoverCheck is degraded while isFailedOver reports true.
func FailoverCheck(isFailedOver func() bool, opts ...CheckOption) *Check {
	return NewCheck("failover", func(context.Context) error {
		if isFailedOver() {
			return NewStatusError(ErrFailedOver, StatusDegraded)
		}
		return nil
	}, opts...)
}

// ProviderCheck is down once the managed record could not be read for
// maxFails runs in a row.
func ProviderCheck(provider dns.Provider, name, recordType string, maxFails uint, opts ...CheckOption) *Check {
	opts = append([]CheckOption{WithCheckMaxFailures(maxFails)}, opts...)
	return NewCheck("dns_provider", func(ctx context.Context) error {
		if _, err := provider.GetRecord(ctx, name, recordType); err != nil {
			return fmt.Errorf("failed to read %s record %s: %w", recordType, name, err)
		}
		return nil
	}, opts...)
}

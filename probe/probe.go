// Package probe measures whether an endpoint is reachable and how fast it answers.
package probe

import (
	"context"

	"github.com/jacobbrewer1/cloudflare-failover/state"
)

// Prober checks a single target. Probe never returns an error: every failure
// is reported through the returned check's Success and Error fields.
type Prober interface {
	Probe(ctx context.Context, target string) state.HealthCheck
}

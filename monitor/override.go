package monitor

import (
	"context"
	"log/slog"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// Outcome is the result of a manual override.
type Outcome int

const (
	// OutcomeApplied means the record was rewritten and the state committed.
	OutcomeApplied Outcome = iota

	// OutcomeAlreadyInState means nothing was done because the monitor was
	// already in the requested mode.
	OutcomeAlreadyInState
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyInState:
		return "already_in_state"
	default:
		return "unknown"
	}
}

// ForceFailover points the record at the backup regardless of the thresholds.
func (r *Reconciler) ForceFailover(ctx context.Context) (Outcome, error) {
	return r.force(ctx, engine.ActionFailover)
}

// ForceRestore points the record at the primary regardless of the thresholds.
func (r *Reconciler) ForceRestore(ctx context.Context) (Outcome, error) {
	return r.force(ctx, engine.ActionRestore)
}

func (r *Reconciler) force(ctx context.Context, action engine.Action) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantFailedOver := action == engine.ActionFailover
	if r.st.IsFailedOver == wantFailedOver {
		r.l.Info("manual override skipped, already in requested mode",
			slog.String(logging.KeyAction, action.String()),
		)
		return OutcomeAlreadyInState, nil
	}

	rec, err := r.getRecord(ctx)
	if err != nil {
		return OutcomeApplied, err
	}

	if err := r.transition(ctx, rec, action, true); err != nil {
		return OutcomeApplied, err
	}

	_ = r.persist(ctx)
	r.publishStatus()
	return OutcomeApplied, nil
}

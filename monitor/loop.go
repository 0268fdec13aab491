package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

const (
	// DefaultInterval is the time between the starts of two cycles.
	DefaultInterval = 30 * time.Second

	// summaryEvery is how many cycles pass between summary log lines.
	summaryEvery = 10

	// livenessIntervals is how many intervals may pass without a cycle before
	// the loop is reported as stalled.
	livenessIntervals = 3
)

var (
	// ErrLoopNotRunning is returned by LivenessCheck when Run is not active.
	ErrLoopNotRunning = errors.New("monitor loop is not running")

	// ErrLoopStalled is returned by LivenessCheck when no cycle finished recently.
	ErrLoopStalled = errors.New("monitor loop has stalled")
)

// LoopOption configures a Loop.
type LoopOption = func(*Loop)

// WithInterval sets the cycle interval.
func WithInterval(interval time.Duration) LoopOption {
	return func(lp *Loop) {
		if interval > 0 {
			lp.interval = interval
		}
	}
}

// WithLeaderCheck makes the loop run cycles only while isLeader reports true.
// On gaining leadership the persisted state is reloaded first.
func WithLeaderCheck(isLeader func() bool) LoopOption {
	return func(lp *Loop) {
		lp.isLeader = isLeader
	}
}

// WithWakeup ends the wait between cycles early whenever wake fires. It is
// used to react to a leadership change without waiting out the interval.
func WithWakeup(wake <-chan struct{}) LoopOption {
	return func(lp *Loop) {
		lp.wake = wake
	}
}

// WithStartupReconciliation enables or disables the startup reconciliation
// run before the first cycle.
func WithStartupReconciliation(enabled bool) LoopOption {
	return func(lp *Loop) {
		lp.startup = enabled
	}
}

// LoopInfo describes a Loop for status reporting.
type LoopInfo struct {
	Running     bool          `json:"running"`
	StartedAt   *time.Time    `json:"started_at"`
	Interval    time.Duration `json:"interval_ns"`
	Cycles      uint64        `json:"cycles"`
	LastCycleAt *time.Time    `json:"last_cycle_at"`
	LastError   string        `json:"last_error,omitempty"`
}

// Loop runs the reconciler at a fixed interval.
type Loop struct {
	l        *slog.Logger
	r        *Reconciler
	interval time.Duration
	isLeader func() bool
	wake     <-chan struct{}
	startup  bool

	running     atomic.Bool
	startedAt   atomic.Pointer[time.Time]
	cycles      atomic.Uint64
	lastCycleAt atomic.Pointer[time.Time]
	lastErr     atomic.Pointer[string]
}

// NewLoop returns a loop driving r. Startup reconciliation is enabled by default.
func NewLoop(l *slog.Logger, r *Reconciler, opts ...LoopOption) *Loop {
	lp := &Loop{
		l:        l,
		r:        r,
		interval: DefaultInterval,
		startup:  true,
	}

	for _, opt := range opts {
		opt(lp)
	}

	return lp
}

// Run runs cycles until ctx is cancelled. Cancellation is only observed
// between cycles; a cycle in flight always completes. The state is persisted
// once more before Run returns.
func (lp *Loop) Run(ctx context.Context) error {
	if !lp.running.CompareAndSwap(false, true) {
		return errors.New("monitor loop already running")
	}
	defer lp.running.Store(false)

	started := time.Now()
	lp.startedAt.Store(&started)

	l := lp.l.With(slog.Duration(logging.KeyInterval, lp.interval))
	l.Info("monitor loop started")

	leading := false
	for ctx.Err() == nil {
		tickStart := time.Now()

		if lp.isLeader != nil && !lp.isLeader() {
			if leading {
				l.Info("lost leadership, pausing cycles")
				leading = false
			}
			lp.sleep(ctx, tickStart)
			continue
		}

		if !leading {
			leading = true
			lp.becomeLeader(ctx)
		}

		lp.tick(ctx)
		lp.sleep(ctx, tickStart)
	}

	if leading {
		if err := lp.r.Persist(context.WithoutCancel(ctx)); err != nil {
			l.Error("failed to persist state on shutdown", slog.Any(logging.KeyError, err))
		}
	}

	l.Info("monitor loop stopped", slog.Uint64(logging.KeyCycle, lp.cycles.Load()))
	return nil
}

func (lp *Loop) becomeLeader(ctx context.Context) {
	cycleCtx := context.WithoutCancel(ctx)

	if lp.isLeader != nil {
		lp.l.Info("acquired leadership, reloading state")
		lp.r.Load(cycleCtx)
	}

	if lp.startup {
		if _, err := lp.r.Startup(cycleCtx); err != nil {
			lp.recordError(err)
		}
	}
}

func (lp *Loop) tick(ctx context.Context) {
	cycleCtx := context.WithoutCancel(ctx)

	_, err := lp.r.Cycle(cycleCtx)
	if errors.Is(err, ErrProviderRead) {
		// An aborted cycle does not persist on its own.
		_ = lp.r.Persist(cycleCtx)
	}
	lp.recordError(err)

	now := time.Now()
	lp.lastCycleAt.Store(&now)
	n := lp.cycles.Add(1)

	if n == 1 || n%summaryEvery == 0 {
		st := lp.r.Status()
		lp.l.Info("monitor summary",
			slog.Uint64(logging.KeyCycle, n),
			slog.String(logging.KeyMode, st.Mode()),
			slog.String(logging.KeyCurrentIP, st.CurrentIP),
			slog.String(logging.KeyFailures, fmt.Sprintf("%d/%d", st.ConsecutiveFailures, st.FailureThreshold)),
			slog.String(logging.KeySuccesses, fmt.Sprintf("%d/%d", st.ConsecutiveSuccesses, st.SuccessThreshold)),
			slog.Int("health_checks_total", st.HealthChecksTotal),
		)
	}
}

func (lp *Loop) sleep(ctx context.Context, tickStart time.Time) {
	wait := max(lp.interval-time.Since(tickStart), 0)

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	case <-lp.wake:
	}
}

func (lp *Loop) recordError(err error) {
	if err == nil {
		lp.lastErr.Store(nil)
		return
	}
	msg := err.Error()
	lp.lastErr.Store(&msg)
}

// Info returns the loop's current progress.
func (lp *Loop) Info() LoopInfo {
	info := LoopInfo{
		Running:     lp.running.Load(),
		StartedAt:   copyTime(lp.startedAt.Load()),
		Interval:    lp.interval,
		Cycles:      lp.cycles.Load(),
		LastCycleAt: copyTime(lp.lastCycleAt.Load()),
	}
	if msg := lp.lastErr.Load(); msg != nil {
		info.LastError = *msg
	}
	return info
}

// LivenessCheck fails when the loop is not running, or when it has not
// completed a cycle within a few intervals while leading.
func (lp *Loop) LivenessCheck(context.Context) error {
	if !lp.running.Load() {
		return ErrLoopNotRunning
	}

	if lp.isLeader != nil && !lp.isLeader() {
		return nil
	}

	last := lp.lastCycleAt.Load()
	if last == nil {
		last = lp.startedAt.Load()
	}
	if last != nil && time.Since(*last) > livenessIntervals*lp.interval {
		return fmt.Errorf("%w: last cycle at %s", ErrLoopStalled, last.Format(time.RFC3339))
	}
	return nil
}

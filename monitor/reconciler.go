// Package monitor drives the failover engine: it reads the managed record,
// probes the primary, applies the engine's decisions through the DNS provider
// and keeps the persisted state in step.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/dns"
	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/probe"
	"github.com/jacobbrewer1/cloudflare-failover/state"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

const (
	// DefaultProviderTimeout bounds each call to the DNS provider.
	DefaultProviderTimeout = 10 * time.Second

	// defaultPersistTimeout bounds each state save.
	defaultPersistTimeout = 10 * time.Second
)

// Targets identifies the managed record and the two addresses it may point at.
type Targets struct {
	Domain     string
	RecordType string
	PrimaryIP  string
	BackupIP   string
}

// Option configures a Reconciler.
type Option = func(*Reconciler)

// WithSink sets where observations and events are reported.
func WithSink(sink telemetry.Sink) Option {
	return func(r *Reconciler) {
		r.sink = sink
	}
}

// WithClock sets the clock used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithProviderTimeout sets the timeout of each DNS provider call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(r *Reconciler) {
		r.providerTimeout = timeout
	}
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	// RecordIP is the record content read at the start of the cycle.
	RecordIP string

	Check    state.HealthCheck
	Decision engine.Decision

	// Committed is true when the decision's transition was written and applied.
	Committed bool
}

// Reconciler owns the monitor state. Cycles, startup reconciliation and manual
// overrides are serialized; Status may be called concurrently with any of them.
type Reconciler struct {
	l        *slog.Logger
	targets  Targets
	provider dns.Provider
	prober   probe.Prober
	engine   *engine.Engine
	store    *state.Store
	sink     telemetry.Sink
	now      func() time.Time

	providerTimeout time.Duration

	mu        sync.Mutex
	st        *state.State
	lastCycle *time.Time

	status atomic.Pointer[Status]
}

// NewReconciler returns a reconciler starting from a fresh state. Call Load
// to pick up persisted state.
func NewReconciler(
	l *slog.Logger,
	targets Targets,
	provider dns.Provider,
	prober probe.Prober,
	eng *engine.Engine,
	store *state.Store,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		l:               l,
		targets:         targets,
		provider:        provider,
		prober:          prober,
		engine:          eng,
		store:           store,
		sink:            telemetry.Discard{},
		now:             time.Now,
		providerTimeout: DefaultProviderTimeout,
		st:              state.New(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.publishStatus()
	return r
}

// Targets returns the managed record and its addresses.
func (r *Reconciler) Targets() Targets {
	return r.targets
}

// Engine returns the decision engine, whose thresholds may be replaced at runtime.
func (r *Reconciler) Engine() *engine.Engine {
	return r.engine
}

// Status returns the latest published snapshot without waiting for a running cycle.
func (r *Reconciler) Status() Status {
	return *r.status.Load()
}

// Load replaces the in-memory state with the persisted one.
func (r *Reconciler) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st = r.store.Load(ctx)
	r.publishStatus()
}

// Persist saves the current state.
func (r *Reconciler) Persist(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.persist(ctx)
}

// Sync refreshes the current address from the provider without evaluating health.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.getRecord(ctx)
	if err != nil {
		return err
	}

	r.st.CurrentIP = rec.Content
	r.publishStatus()
	return nil
}

// Cycle runs one monitoring cycle:
//  1. read the record, abandoning the cycle on failure;
//  2. probe the primary;
//  3. adopt the record's content as the current address;
//  4. fold the check into the engine;
//  5. write the decided transition, committing it only if the write succeeds;
//  6. persist the state.
//
// A failed write is returned wrapping ErrProviderWrite after the state was persisted.
func (r *Reconciler) Cycle(ctx context.Context) (*CycleReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.getRecord(ctx)
	if err != nil {
		r.l.Error("skipping cycle, dns record unavailable", slog.Any(logging.KeyError, err))
		r.sink.Publish(ctx, r.event(telemetry.EventRecordReadFailed, "", "", "cycle", err))
		return nil, err
	}

	check := r.prober.Probe(ctx, r.targets.PrimaryIP)
	r.st.CurrentIP = rec.Content

	decision := r.engine.Evaluate(r.st, check)
	report := &CycleReport{
		RecordIP: rec.Content,
		Check:    check,
		Decision: decision,
	}

	r.logCheck(check, decision)
	r.sink.Observe(ctx, telemetry.Observation{
		Domain:               r.targets.Domain,
		Check:                check,
		Healthy:              decision.Healthy,
		IsFailedOver:         r.st.IsFailedOver,
		ConsecutiveFailures:  r.st.ConsecutiveFailures,
		ConsecutiveSuccesses: r.st.ConsecutiveSuccesses,
	})

	var writeErr error
	if decision.Action != engine.ActionNone {
		writeErr = r.transition(ctx, rec, decision.Action, false)
		report.Committed = writeErr == nil
	}

	now := r.now()
	r.lastCycle = &now

	_ = r.persist(ctx)
	r.publishStatus()

	return report, writeErr
}

// transition writes the target of action to the record and commits the
// engine transition when the write succeeds.
func (r *Reconciler) transition(ctx context.Context, rec *dns.Record, action engine.Action, manual bool) error {
	target, okEvent, failEvent := r.targets.PrimaryIP, telemetry.EventRestore, telemetry.EventRestoreFailed
	if action == engine.ActionFailover {
		target, okEvent, failEvent = r.targets.BackupIP, telemetry.EventFailover, telemetry.EventFailoverFailed
	}

	reason := "health"
	if manual {
		reason = "manual"
		okEvent = telemetry.EventManualRestore
		if action == engine.ActionFailover {
			okEvent = telemetry.EventManualFailover
		}
	}

	from := rec.Content
	l := r.l.With(
		slog.String(logging.KeyAction, action.String()),
		slog.String(logging.KeyReason, reason),
		slog.String(logging.KeyTarget, target),
	)

	if err := r.updateRecord(ctx, rec.ID, target); err != nil {
		l.Error("dns update failed, transition not committed", slog.Any(logging.KeyError, err))
		r.sink.Publish(ctx, r.event(failEvent, from, target, reason, err))
		return err
	}

	ev := r.event(okEvent, from, target, reason, nil)

	now := r.now()
	switch action {
	case engine.ActionFailover:
		engine.CommitFailover(r.st, target, now)
	case engine.ActionRestore:
		engine.CommitRestore(r.st, target, now)
	}

	l.Info("dns record switched", slog.String("from_ip", from))
	r.sink.Publish(ctx, ev)
	return nil
}

func (r *Reconciler) getRecord(ctx context.Context) (*dns.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	rec, err := r.provider.GetRecord(ctx, r.targets.Domain, r.targets.RecordType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderRead, err)
	}
	return rec, nil
}

func (r *Reconciler) updateRecord(ctx context.Context, recordID, content string) error {
	ctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	if err := r.provider.UpdateRecord(ctx, recordID, content); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderWrite, err)
	}
	return nil
}

// persist saves the state. Failures are logged and reported; the in-memory
// state stays authoritative.
func (r *Reconciler) persist(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPersistTimeout)
	defer cancel()

	if err := r.store.Save(ctx, r.st); err != nil {
		r.l.Error("failed to persist state", slog.Any(logging.KeyError, err))
		r.sink.Publish(ctx, r.event(telemetry.EventStatePersistError, "", "", "", err))
		return err
	}
	return nil
}

func (r *Reconciler) publishStatus() {
	r.status.Store(buildStatus(r.targets, r.engine.Thresholds(), r.st, r.lastCycle))
}

func (r *Reconciler) event(t telemetry.EventType, from, to, reason string, err error) telemetry.Event {
	e := telemetry.Event{
		Type:                 t,
		Timestamp:            r.now(),
		Domain:               r.targets.Domain,
		FromIP:               from,
		ToIP:                 to,
		Reason:               reason,
		ConsecutiveFailures:  r.st.ConsecutiveFailures,
		ConsecutiveSuccesses: r.st.ConsecutiveSuccesses,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (r *Reconciler) logCheck(check state.HealthCheck, d engine.Decision) {
	mode := "primary"
	if r.st.IsFailedOver {
		mode = "backup"
	}

	attrs := []slog.Attr{
		slog.String(logging.KeyTarget, r.targets.PrimaryIP),
		slog.Bool(logging.KeyHealthy, d.Healthy),
		slog.String(logging.KeyMode, mode),
		slog.String(logging.KeyFailures, fmt.Sprintf("%d/%d", r.st.ConsecutiveFailures, d.Thresholds.FailureThreshold)),
		slog.String(logging.KeySuccesses, fmt.Sprintf("%d/%d", r.st.ConsecutiveSuccesses, d.Thresholds.SuccessThreshold)),
		slog.String(logging.KeyAction, d.Action.String()),
	}
	if latency, ok := check.Latency(); ok {
		attrs = append(attrs, slog.Float64(logging.KeyLatency, latency))
	}
	if msg := check.ErrorMessage(); msg != "" {
		attrs = append(attrs, slog.String(logging.KeyError, msg))
	}

	r.l.LogAttrs(context.Background(), slog.LevelInfo, "primary health checked", attrs...)
}

// State returns a copy of the current state.
func (r *Reconciler) State() *state.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.st.Clone()
}

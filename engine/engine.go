// Package engine decides when the managed record should move between the
// primary and the backup endpoint.
//
// The engine is a two state machine (primary active, failed over) with
// hysteresis: a failover needs FailureThreshold consecutive unhealthy checks,
// a restore needs SuccessThreshold consecutive healthy ones. The engine never
// talks to the DNS provider. It tells the caller which write is due, and the
// caller commits the transition only once that write succeeded.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/state"
)

// Action is the DNS change the engine asks for after a check.
type Action int

const (
	// ActionNone means the record should stay as it is.
	ActionNone Action = iota

	// ActionFailover means the record should be pointed at the backup.
	ActionFailover

	// ActionRestore means the record should be pointed back at the primary.
	ActionRestore
)

func (a Action) String() string {
	switch a {
	case ActionFailover:
		return "failover"
	case ActionRestore:
		return "restore"
	default:
		return "none"
	}
}

// Decision is the result of evaluating one health check.
type Decision struct {
	Action Action

	// Healthy is the verdict on the evaluated check.
	Healthy bool

	// Thresholds are the values the decision was made with.
	Thresholds Thresholds
}

// Engine evaluates health checks against thresholds that may be swapped at
// runtime. It holds no other state.
type Engine struct {
	thresholds atomic.Pointer[Thresholds]
}

// New returns an engine using t.
func New(t Thresholds) *Engine {
	e := new(Engine)
	e.SetThresholds(t)
	return e
}

// Thresholds returns the thresholds currently in effect.
func (e *Engine) Thresholds() Thresholds {
	return *e.thresholds.Load()
}

// SetThresholds replaces the thresholds used by subsequent evaluations.
func (e *Engine) SetThresholds(t Thresholds) {
	e.thresholds.Store(&t)
}

// IsHealthy reports whether c counts as healthy: the probe succeeded and its
// latency, when known, is within the threshold.
func (t Thresholds) IsHealthy(c state.HealthCheck) bool {
	if !c.Success {
		return false
	}
	latency, ok := c.Latency()
	return !ok || latency <= t.LatencyThresholdMS
}

// Evaluate folds c into the counters and history of s and returns the
// transition that is now due. Counters are updated before the transition is
// evaluated, and the failover flag is read as it was before this check.
func (e *Engine) Evaluate(s *state.State, c state.HealthCheck) Decision {
	t := e.Thresholds()
	healthy := t.IsHealthy(c)

	if healthy {
		s.ConsecutiveFailures = 0
		s.ConsecutiveSuccesses++
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
	}
	s.History.Append(c)

	d := Decision{
		Action:     ActionNone,
		Healthy:    healthy,
		Thresholds: t,
	}

	switch {
	case !s.IsFailedOver && s.ConsecutiveFailures >= t.FailureThreshold:
		d.Action = ActionFailover
	case s.IsFailedOver && healthy && s.ConsecutiveSuccesses >= t.SuccessThreshold:
		d.Action = ActionRestore
	}

	return d
}

// CommitFailover records that the record now points at backupIP. Both
// counters restart so that a restore always needs a full run of healthy
// checks taken while failed over.
func CommitFailover(s *state.State, backupIP string, now time.Time) {
	s.IsFailedOver = true
	s.CurrentIP = backupIP
	s.LastFailover = &now
	s.ResetCounters()
}

// CommitRestore records that the record points at primaryIP again.
func CommitRestore(s *state.State, primaryIP string, now time.Time) {
	s.IsFailedOver = false
	s.CurrentIP = primaryIP
	s.LastRestore = &now
	s.ConsecutiveSuccesses = 0
}

// Package telemetry reports what the failover monitor observes and decides.
package telemetry

import (
	"context"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/state"
)

// EventType names a change, or failed change, of the managed record.
type EventType string

const (
	EventFailover          EventType = "DNS_FAILOVER"
	EventFailoverFailed    EventType = "DNS_FAILOVER_FAILED"
	EventRestore           EventType = "DNS_RESTORE"
	EventRestoreFailed     EventType = "DNS_RESTORE_FAILED"
	EventStartupChange     EventType = "DNS_STARTUP_CHANGE"
	EventStartupFailed     EventType = "DNS_STARTUP_FAILED"
	EventManualFailover    EventType = "DNS_MANUAL_FAILOVER"
	EventManualRestore     EventType = "DNS_MANUAL_RESTORE"
	EventRecordReadFailed  EventType = "DNS_READ_FAILED"
	EventStatePersistError EventType = "STATE_PERSIST_FAILED"
)

// Failed reports whether the event records a failure.
func (t EventType) Failed() bool {
	switch t {
	case EventFailoverFailed, EventRestoreFailed, EventStartupFailed, EventRecordReadFailed, EventStatePersistError:
		return true
	default:
		return false
	}
}

// Event describes a change of the managed record or a failure to change it.
type Event struct {
	Type                 EventType `json:"type"`
	Timestamp            time.Time `json:"timestamp"`
	Domain               string    `json:"domain"`
	FromIP               string    `json:"from_ip,omitempty"`
	ToIP                 string    `json:"to_ip,omitempty"`
	Reason               string    `json:"reason,omitempty"`
	Error                string    `json:"error,omitempty"`
	ConsecutiveFailures  uint      `json:"consecutive_failures"`
	ConsecutiveSuccesses uint      `json:"consecutive_successes"`
}

// Observation is one evaluated health check together with the counters it produced.
type Observation struct {
	Domain               string
	Check                state.HealthCheck
	Healthy              bool
	IsFailedOver         bool
	ConsecutiveFailures  uint
	ConsecutiveSuccesses uint
}

// Sink receives observations and events. Implementations must not block for
// long: they are called from the monitor cycle.
type Sink interface {
	Observe(ctx context.Context, o Observation)
	Publish(ctx context.Context, e Event)
}

// Multi forwards to every sink in order.
type Multi []Sink

func (m Multi) Observe(ctx context.Context, o Observation) {
	for _, s := range m {
		s.Observe(ctx, o)
	}
}

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, s := range m {
		s.Publish(ctx, e)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Observe(context.Context, Observation) {}

func (Discard) Publish(context.Context, Event) {}

// Package state holds the failover monitor's durable state and the media it is
// persisted to.
package state

import "time"

// HistoryCapacity is the number of health checks retained in a State.
const HistoryCapacity = 100

// HealthCheck is the outcome of a single probe of an endpoint.
type HealthCheck struct {
	// Timestamp is when the probe started.
	Timestamp time.Time

	// Success is true when the endpoint answered with a non-error status.
	Success bool

	// LatencyMS is the measured round trip in milliseconds. It is nil when no
	// request could be issued at all.
	LatencyMS *float64

	// Error describes why the probe failed. It is nil for successful probes.
	Error *string
}

// Latency returns the latency and whether one was recorded.
func (c HealthCheck) Latency() (float64, bool) {
	if c.LatencyMS == nil {
		return 0, false
	}
	return *c.LatencyMS, true
}

// ErrorMessage returns the failure reason, or an empty string.
func (c HealthCheck) ErrorMessage() string {
	if c.Error == nil {
		return ""
	}
	return *c.Error
}

// State is the monitor's view of the managed record and the health of the
// primary endpoint. It has a single owner; callers that hand a State to
// another goroutine must pass a Clone.
type State struct {
	// CurrentIP is the content of the DNS record as last observed or written.
	CurrentIP string

	// IsFailedOver is true while the record is believed to point at the backup.
	IsFailedOver bool

	ConsecutiveFailures  uint
	ConsecutiveSuccesses uint

	LastFailover *time.Time
	LastRestore  *time.Time

	// History holds the most recent health checks, oldest first.
	History *History
}

// New returns the state used when nothing has been persisted yet.
func New() *State {
	return &State{
		History: NewHistory(HistoryCapacity),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.LastFailover = cloneTime(s.LastFailover)
	c.LastRestore = cloneTime(s.LastRestore)
	if s.History != nil {
		c.History = s.History.Clone()
	} else {
		c.History = NewHistory(HistoryCapacity)
	}
	return &c
}

// ResetCounters zeroes both consecutive counters.
func (s *State) ResetCounters() {
	s.ConsecutiveFailures = 0
	s.ConsecutiveSuccesses = 0
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package monitor

import (
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/state"
)

// Status is a point in time view of the monitor, safe to share between goroutines.
type Status struct {
	Domain               string     `json:"domain"`
	RecordType           string     `json:"record_type"`
	CurrentIP            string     `json:"current_ip"`
	PrimaryIP            string     `json:"primary_ip"`
	BackupIP             string     `json:"backup_ip"`
	IsFailedOver         bool       `json:"is_failed_over"`
	ConsecutiveFailures  uint       `json:"consecutive_failures"`
	ConsecutiveSuccesses uint       `json:"consecutive_successes"`
	FailureThreshold     uint       `json:"failure_threshold"`
	SuccessThreshold     uint       `json:"success_threshold"`
	LatencyThresholdMS   float64    `json:"latency_threshold_ms"`
	LastFailover         *time.Time `json:"last_failover"`
	LastRestore          *time.Time `json:"last_restore"`
	HealthChecksTotal    int        `json:"health_checks_total"`
	LastCheck            *time.Time `json:"last_check"`
	LastSuccess          *bool      `json:"last_success"`
	LastLatencyMS        *float64   `json:"last_latency_ms"`
	LastError            *string    `json:"last_error"`
	LastCycle            *time.Time `json:"last_cycle"`
}

// Mode returns "backup" while failed over and "primary" otherwise.
func (s *Status) Mode() string {
	if s.IsFailedOver {
		return "backup"
	}
	return "primary"
}

func buildStatus(t Targets, th engine.Thresholds, st *state.State, lastCycle *time.Time) *Status {
	s := &Status{
		Domain:               t.Domain,
		RecordType:           t.RecordType,
		CurrentIP:            st.CurrentIP,
		PrimaryIP:            t.PrimaryIP,
		BackupIP:             t.BackupIP,
		IsFailedOver:         st.IsFailedOver,
		ConsecutiveFailures:  st.ConsecutiveFailures,
		ConsecutiveSuccesses: st.ConsecutiveSuccesses,
		FailureThreshold:     th.FailureThreshold,
		SuccessThreshold:     th.SuccessThreshold,
		LatencyThresholdMS:   th.LatencyThresholdMS,
		LastFailover:         copyTime(st.LastFailover),
		LastRestore:          copyTime(st.LastRestore),
		HealthChecksTotal:    st.History.Len(),
		LastCycle:            copyTime(lastCycle),
	}

	if last, ok := st.History.Last(); ok {
		ts := last.Timestamp
		success := last.Success
		s.LastCheck = &ts
		s.LastSuccess = &success
		if latency, ok := last.Latency(); ok {
			s.LastLatencyMS = &latency
		}
		if msg := last.ErrorMessage(); msg != "" {
			s.LastError = &msg
		}
	}

	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

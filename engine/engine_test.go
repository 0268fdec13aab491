package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/state"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func healthy(ms float64) state.HealthCheck {
	return state.HealthCheck{Timestamp: epoch, Success: true, LatencyMS: &ms}
}

func unhealthy() state.HealthCheck {
	msg := "HTTP 503"
	ms := 12.0
	return state.HealthCheck{Timestamp: epoch, Success: false, LatencyMS: &ms, Error: &msg}
}

func TestSuccessThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stability time.Duration
		interval  time.Duration
		want      uint
	}{
		{name: "defaults", stability: 600 * time.Second, interval: 30 * time.Second, want: 20},
		{name: "floors", stability: 100 * time.Second, interval: 30 * time.Second, want: 3},
		{name: "stability shorter than interval", stability: 10 * time.Second, interval: 30 * time.Second, want: 1},
		{name: "zero interval", stability: time.Minute, interval: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, SuccessThreshold(tt.stability, tt.interval))
		})
	}
}

func TestThresholds_IsHealthy(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	tests := []struct {
		name  string
		check state.HealthCheck
		want  bool
	}{
		{name: "fast success", check: healthy(20), want: true},
		{name: "at the limit", check: healthy(100), want: true},
		{name: "slow success", check: healthy(100.5), want: false},
		{name: "success without latency", check: state.HealthCheck{Success: true}, want: true},
		{name: "failure", check: unhealthy(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, th.IsHealthy(tt.check))
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultThresholds().Validate())

	err := Thresholds{}.Validate()
	require.ErrorContains(t, err, "latency threshold")
	require.ErrorContains(t, err, "failure threshold")
	require.ErrorContains(t, err, "success threshold")
}

func TestEvaluate_CountersAreExclusive(t *testing.T) {
	t.Parallel()

	e := New(DefaultThresholds())
	s := state.New()

	for i, c := range []state.HealthCheck{healthy(10), healthy(10), unhealthy(), healthy(500), healthy(10)} {
		e.Evaluate(s, c)
		require.False(t, s.ConsecutiveFailures > 0 && s.ConsecutiveSuccesses > 0, "check %d", i)
	}

	require.Equal(t, uint(1), s.ConsecutiveSuccesses)
	require.Zero(t, s.ConsecutiveFailures)
	require.Equal(t, 5, s.History.Len())
}

func TestEvaluate_FailoverAfterThreshold(t *testing.T) {
	t.Parallel()

	e := New(DefaultThresholds())
	s := state.New()

	d := e.Evaluate(s, unhealthy())
	require.Equal(t, ActionNone, d.Action)
	require.False(t, d.Healthy)
	require.Equal(t, uint(1), s.ConsecutiveFailures)

	d = e.Evaluate(s, unhealthy())
	require.Equal(t, ActionFailover, d.Action)
	require.Equal(t, uint(2), s.ConsecutiveFailures)

	CommitFailover(s, "198.51.100.2", epoch)
	require.True(t, s.IsFailedOver)
	require.Equal(t, "198.51.100.2", s.CurrentIP)
	require.Equal(t, epoch, *s.LastFailover)
	require.Zero(t, s.ConsecutiveFailures)

	// Already failed over: further failures never ask for another failover.
	for range 5 {
		require.Equal(t, ActionNone, e.Evaluate(s, unhealthy()).Action)
	}
}

func TestCommitFailover_ResetsSuccessCounter(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	e := New(th)
	s := state.New()

	for range int(th.SuccessThreshold) + 5 {
		require.Equal(t, ActionNone, e.Evaluate(s, healthy(10)).Action)
	}
	require.Greater(t, s.ConsecutiveSuccesses, th.SuccessThreshold)

	CommitFailover(s, "198.51.100.2", epoch)
	require.Zero(t, s.ConsecutiveSuccesses)
	require.Zero(t, s.ConsecutiveFailures)

	require.Equal(t, ActionNone, e.Evaluate(s, healthy(10)).Action)
	require.Equal(t, uint(1), s.ConsecutiveSuccesses)
}

func TestEvaluate_UncommittedFailoverIsRetried(t *testing.T) {
	t.Parallel()

	e := New(DefaultThresholds())
	s := state.New()

	e.Evaluate(s, unhealthy())
	require.Equal(t, ActionFailover, e.Evaluate(s, unhealthy()).Action)

	// The DNS write failed, so nothing was committed.
	require.False(t, s.IsFailedOver)
	require.Equal(t, uint(2), s.ConsecutiveFailures)

	d := e.Evaluate(s, unhealthy())
	require.Equal(t, ActionFailover, d.Action)
	require.Equal(t, uint(3), s.ConsecutiveFailures)
}

func TestEvaluate_RestoreNeedsFullStabilityPeriod(t *testing.T) {
	t.Parallel()

	e := New(NewThresholds(100, 2, 600*time.Second, 30*time.Second))
	s := state.New()
	CommitFailover(s, "198.51.100.2", epoch)

	for i := 1; i <= 19; i++ {
		d := e.Evaluate(s, healthy(40))
		require.Equal(t, ActionNone, d.Action, "check %d", i)
	}

	d := e.Evaluate(s, healthy(40))
	require.Equal(t, ActionRestore, d.Action)
	require.Equal(t, uint(20), s.ConsecutiveSuccesses)

	CommitRestore(s, "192.0.2.1", epoch.Add(time.Hour))
	require.False(t, s.IsFailedOver)
	require.Equal(t, "192.0.2.1", s.CurrentIP)
	require.Zero(t, s.ConsecutiveSuccesses)
	require.True(t, s.LastRestore.After(*s.LastFailover))
}

func TestEvaluate_UnhealthyCheckResetsRestoreProgress(t *testing.T) {
	t.Parallel()

	e := New(NewThresholds(100, 2, 90*time.Second, 30*time.Second))
	s := state.New()
	CommitFailover(s, "198.51.100.2", epoch)

	e.Evaluate(s, healthy(10))
	e.Evaluate(s, healthy(10))
	e.Evaluate(s, healthy(250)) // too slow counts as unhealthy
	require.Zero(t, s.ConsecutiveSuccesses)

	e.Evaluate(s, healthy(10))
	require.Equal(t, ActionNone, e.Evaluate(s, healthy(10)).Action)
	require.Equal(t, ActionRestore, e.Evaluate(s, healthy(10)).Action)
}

func TestEvaluate_HealthyPrimaryNeverRestoresWhenNotFailedOver(t *testing.T) {
	t.Parallel()

	e := New(NewThresholds(100, 2, 30*time.Second, 30*time.Second))
	s := state.New()

	for range 10 {
		require.Equal(t, ActionNone, e.Evaluate(s, healthy(5)).Action)
	}
}

func TestEvaluate_HistoryCapped(t *testing.T) {
	t.Parallel()

	e := New(DefaultThresholds())
	s := state.New()
	CommitFailover(s, "198.51.100.2", epoch)

	for range 150 {
		e.Evaluate(s, unhealthy())
	}
	require.Equal(t, state.HistoryCapacity, s.History.Len())
}

func TestEngine_SetThresholds(t *testing.T) {
	t.Parallel()

	e := New(DefaultThresholds())
	e.SetThresholds(NewThresholds(50, 3, time.Minute, 30*time.Second))

	got := e.Thresholds()
	require.InDelta(t, 50, got.LatencyThresholdMS, 0)
	require.Equal(t, uint(3), got.FailureThreshold)
	require.Equal(t, uint(2), got.SuccessThreshold)

	s := state.New()
	require.False(t, e.Evaluate(s, healthy(75)).Healthy)
}

func TestAction_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", ActionNone.String())
	require.Equal(t, "failover", ActionFailover.String())
	require.Equal(t, "restore", ActionRestore.String())
}

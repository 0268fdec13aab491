package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

func TestReconciler_Startup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		record        string
		primaryUp     bool
		backupUp      bool
		wantReason    string
		wantRecord    string
		wantChanged   bool
		wantFailedOut bool
		wantEvents    []telemetry.EventType
	}{
		{
			name:        "primary healthy while record on backup",
			record:      testBackupIP,
			primaryUp:   true,
			backupUp:    true,
			wantReason:  ReasonPrimaryHealthy,
			wantRecord:  testPrimaryIP,
			wantChanged: true,
			wantEvents:  []telemetry.EventType{telemetry.EventStartupChange},
		},
		{
			name:       "primary healthy and record already on primary",
			record:     testPrimaryIP,
			primaryUp:  true,
			wantReason: ReasonPrimaryHealthy,
			wantRecord: testPrimaryIP,
		},
		{
			name:          "only backup healthy",
			record:        testPrimaryIP,
			backupUp:      true,
			wantReason:    ReasonBackupOnly,
			wantRecord:    testBackupIP,
			wantChanged:   true,
			wantFailedOut: true,
			wantEvents:    []telemetry.EventType{telemetry.EventStartupChange},
		},
		{
			name:          "both unhealthy keeps backup record",
			record:        testBackupIP,
			wantReason:    ReasonBothUnhealthy,
			wantRecord:    testBackupIP,
			wantFailedOut: true,
		},
		{
			name:       "both unhealthy keeps primary record",
			record:     testPrimaryIP,
			wantReason: ReasonBothUnhealthy,
			wantRecord: testPrimaryIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, engine.DefaultThresholds())
			h.provider.content = tt.record
			if tt.primaryUp {
				h.prober.up(testPrimaryIP, 10)
			}
			if tt.backupUp {
				h.prober.up(testBackupIP, 10)
			}

			report, err := h.r.Startup(t.Context())
			require.NoError(t, err)
			require.Equal(t, tt.wantReason, report.Reason)
			require.Equal(t, tt.wantChanged, report.Changed)
			require.Equal(t, 1, h.prober.count(testPrimaryIP))
			require.Equal(t, 1, h.prober.count(testBackupIP))

			st := h.r.Status()
			require.Equal(t, tt.wantRecord, h.provider.current())
			require.Equal(t, tt.wantRecord, st.CurrentIP)
			require.Equal(t, tt.wantFailedOut, st.IsFailedOver)
			require.Equal(t, tt.wantEvents, nilIfEmpty(h.sink.types()))
			require.Equal(t, 1, h.medium.writeCount())
		})
	}
}

func TestReconciler_StartupFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.provider.content = testBackupIP
	h.prober.up(testPrimaryIP, 10)
	h.provider.set(func(p *fakeProvider) { p.updateErr = errBoom })

	// Leave counters behind so the reset is visible.
	h.r.st.ConsecutiveFailures = 1

	report, err := h.r.Startup(t.Context())
	require.ErrorIs(t, err, ErrProviderWrite)
	require.Equal(t, ReasonPrimaryHealthy, report.Reason)
	require.False(t, report.Changed)

	st := h.r.Status()
	require.Zero(t, st.ConsecutiveFailures)
	require.Zero(t, st.ConsecutiveSuccesses)
	require.Equal(t, []telemetry.EventType{telemetry.EventStartupFailed}, h.sink.types())
	require.Equal(t, 1, h.medium.writeCount())
}

func TestReconciler_StartupReadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.provider.set(func(p *fakeProvider) { p.getErr = errBoom })

	report, err := h.r.Startup(t.Context())
	require.ErrorIs(t, err, ErrProviderRead)
	require.Nil(t, report)
	require.Zero(t, h.prober.count(testPrimaryIP))
	require.Equal(t, []telemetry.EventType{telemetry.EventStartupFailed}, h.sink.types())
}

func nilIfEmpty(types []telemetry.EventType) []telemetry.EventType {
	if len(types) == 0 {
		return nil
	}
	return types
}

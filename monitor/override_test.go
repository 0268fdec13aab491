package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

func TestForceFailoverAndRestore(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())

	outcome, err := h.r.ForceRestore(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyInState, outcome)
	require.Zero(t, h.provider.updateCount())

	outcome, err = h.r.ForceFailover(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.True(t, h.r.Status().IsFailedOver)
	require.Equal(t, testBackupIP, h.provider.current())

	outcome, err = h.r.ForceFailover(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyInState, outcome)
	require.Equal(t, 1, h.provider.updateCount())

	outcome, err = h.r.ForceRestore(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.False(t, h.r.Status().IsFailedOver)
	require.Equal(t, testPrimaryIP, h.provider.current())

	require.Equal(t, []telemetry.EventType{
		telemetry.EventManualFailover,
		telemetry.EventManualRestore,
	}, h.sink.types())
	require.Equal(t, 2, h.medium.writeCount())
}

func TestForceFailover_HealthyPrimaryDoesNotRestoreEarly(t *testing.T) {
	t.Parallel()

	th := engine.NewThresholds(100, 2, 10*time.Minute, 30*time.Second)
	h := newHarness(t, th)
	h.prober.up(testPrimaryIP, 10)

	h.cycles(t, 25)
	require.Equal(t, uint(25), h.r.Status().ConsecutiveSuccesses)

	outcome, err := h.r.ForceFailover(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.Zero(t, h.r.Status().ConsecutiveSuccesses)

	h.cycles(t, 1)
	require.True(t, h.r.Status().IsFailedOver)
	require.Equal(t, testBackupIP, h.provider.current())

	h.cycles(t, int(th.SuccessThreshold)-2)
	require.True(t, h.r.Status().IsFailedOver)

	h.cycles(t, 1)
	require.False(t, h.r.Status().IsFailedOver)
	require.Equal(t, testPrimaryIP, h.provider.current())
}

func TestForceFailover_WriteFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.provider.set(func(p *fakeProvider) { p.updateErr = errBoom })

	_, err := h.r.ForceFailover(t.Context())
	require.ErrorIs(t, err, ErrProviderWrite)
	require.False(t, h.r.Status().IsFailedOver)
	require.Nil(t, h.r.Status().LastFailover)
	require.Zero(t, h.medium.writeCount())
	require.Equal(t, []telemetry.EventType{telemetry.EventFailoverFailed}, h.sink.types())
}

func TestForceRestore_ReadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	_, err := h.r.ForceFailover(t.Context())
	require.NoError(t, err)

	h.provider.set(func(p *fakeProvider) { p.getErr = errBoom })
	_, err = h.r.ForceRestore(t.Context())
	require.ErrorIs(t, err, ErrProviderRead)
	require.True(t, h.r.Status().IsFailedOver)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "applied", OutcomeApplied.String())
	require.Equal(t, "already_in_state", OutcomeAlreadyInState.String())
	require.Equal(t, "unknown", Outcome(9).String())
}

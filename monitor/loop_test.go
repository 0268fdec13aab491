package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/engine"
)

func runLoop(t *testing.T, lp *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- lp.Run(ctx)
	}()
	return cancel, done
}

func TestLoop_RunsCyclesUntilCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.prober.up(testPrimaryIP, 10)

	lp := NewLoop(slog.New(slog.DiscardHandler), h.r, WithInterval(5*time.Millisecond))
	cancel, done := runLoop(t, lp)

	require.Eventually(t, func() bool {
		return lp.Info().Cycles >= 3
	}, 2*time.Second, time.Millisecond)
	require.True(t, lp.Info().Running)
	require.NoError(t, lp.LivenessCheck(t.Context()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	info := lp.Info()
	require.False(t, info.Running)
	require.NotNil(t, info.StartedAt)
	require.Empty(t, info.LastError)
	require.ErrorIs(t, lp.LivenessCheck(t.Context()), ErrLoopNotRunning)

	// Startup, every cycle and the shutdown each persist once.
	require.GreaterOrEqual(t, h.medium.writeCount(), int(info.Cycles)+2)
}

func TestLoop_StartupReconciliation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.provider.content = testBackupIP
	h.prober.up(testPrimaryIP, 10)

	lp := NewLoop(slog.New(slog.DiscardHandler), h.r, WithInterval(time.Hour))
	cancel, done := runLoop(t, lp)
	require.Eventually(t, func() bool {
		return lp.Info().Cycles == 1
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, testPrimaryIP, h.provider.current())
}

func TestLoop_ReadFailureIsRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.provider.set(func(p *fakeProvider) { p.getErr = errBoom })

	lp := NewLoop(slog.New(slog.DiscardHandler), h.r,
		WithInterval(time.Hour),
		WithStartupReconciliation(false),
	)
	cancel, done := runLoop(t, lp)
	require.Eventually(t, func() bool {
		return lp.Info().Cycles == 1
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Contains(t, lp.Info().LastError, "boom")
	require.Zero(t, h.prober.count(testPrimaryIP))
	require.Equal(t, 2, h.medium.writeCount())
}

func TestLoop_FollowerSkipsCycles(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	var leader atomic.Bool

	lp := NewLoop(slog.New(slog.DiscardHandler), h.r,
		WithInterval(5*time.Millisecond),
		WithLeaderCheck(leader.Load),
		WithStartupReconciliation(false),
	)
	cancel, done := runLoop(t, lp)

	time.Sleep(30 * time.Millisecond)
	require.Zero(t, lp.Info().Cycles)
	require.Zero(t, h.provider.gets)
	require.NoError(t, lp.LivenessCheck(t.Context()))

	leader.Store(true)
	require.Eventually(t, func() bool {
		return lp.Info().Cycles >= 1
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestLoop_WakeupEndsWaitEarly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	h.prober.up(testPrimaryIP, 10)

	var leader atomic.Bool
	wake := make(chan struct{})

	lp := NewLoop(slog.New(slog.DiscardHandler), h.r,
		WithInterval(time.Hour),
		WithLeaderCheck(leader.Load),
		WithWakeup(wake),
		WithStartupReconciliation(false),
	)
	cancel, done := runLoop(t, lp)

	leader.Store(true)
	select {
	case wake <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never waited on the wakeup channel")
	}

	require.Eventually(t, func() bool {
		return lp.Info().Cycles == 1
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestLoop_RejectsSecondRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultThresholds())
	lp := NewLoop(slog.New(slog.DiscardHandler), h.r,
		WithInterval(time.Hour),
		WithStartupReconciliation(false),
	)
	cancel, done := runLoop(t, lp)
	require.Eventually(t, func() bool { return lp.Info().Running }, 2*time.Second, time.Millisecond)

	require.Error(t, lp.Run(t.Context()))

	cancel()
	require.NoError(t, <-done)
}

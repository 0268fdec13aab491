package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheck_MaxContiguousFailures(t *testing.T) {
	t.Parallel()

	fail := true
	c := NewCheck("flaky", func(context.Context) error {
		if fail {
			return errors.New("unreachable")
		}
		return nil
	}, WithCheckMaxFailures(3))
	require.Equal(t, StatusUnknown, c.Status())

	for i := range 2 {
		status, err := c.Check(t.Context())
		require.Error(t, err)
		require.Equal(t, StatusUp, status, "failure %d is tolerated", i+1)
	}

	status, err := c.Check(t.Context())
	require.Error(t, err)
	require.Equal(t, StatusDown, status)

	fail = false
	status, err = c.Check(t.Context())
	require.NoError(t, err)
	require.Equal(t, StatusUp, status)

	fail = true
	status, _ = c.Check(t.Context())
	require.Equal(t, StatusUp, status, "the failure count restarts after a success")
}

func TestCheck_StatusError(t *testing.T) {
	t.Parallel()

	c := NewCheck("custom", func(context.Context) error {
		return NewStatusError(errors.New("slow"), StatusDegraded)
	})

	status, err := c.Check(t.Context())
	require.Equal(t, StatusDegraded, status)
	require.EqualError(t, err, "slow")

	invalid := NewCheck("invalid", func(context.Context) error {
		return NewStatusError(errors.New("odd"), Status(42))
	})
	status, _ = invalid.Check(t.Context())
	require.Equal(t, StatusUnknown, status)
}

func TestCheck_Timeout(t *testing.T) {
	t.Parallel()

	c := NewCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithCheckTimeout(10*time.Millisecond))

	status, err := c.Check(t.Context())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StatusDown, status)
}

func TestCheck_StatusListener(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		changes []Status
	)
	healthy := true
	c := NewCheck("listened", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}, WithCheckOnStatusChange(func(_ context.Context, name string, status Status) {
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, "listened", name)
		changes = append(changes, status)
	}))

	_, _ = c.Check(t.Context())
	_, _ = c.Check(t.Context())
	healthy = false
	_, _ = c.Check(t.Context())

	require.Equal(t, []Status{StatusUp, StatusDown}, changes)
}

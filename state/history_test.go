package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func checkAt(i int) HealthCheck {
	latency := float64(i)
	return HealthCheck{
		Timestamp: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		Success:   true,
		LatencyMS: &latency,
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	t.Parallel()

	h := NewHistory(HistoryCapacity)
	for i := range 150 {
		h.Append(checkAt(i))
	}

	require.Equal(t, HistoryCapacity, h.Len())

	items := h.Items()
	require.Len(t, items, HistoryCapacity)
	for i, c := range items {
		got, ok := c.Latency()
		require.True(t, ok)
		require.InDelta(t, float64(50+i), got, 0)
	}

	last, ok := h.Last()
	require.True(t, ok)
	require.Equal(t, checkAt(149).Timestamp, last.Timestamp)
}

func TestHistory_PartiallyFilled(t *testing.T) {
	t.Parallel()

	h := NewHistory(5)
	_, ok := h.Last()
	require.False(t, ok)

	h.Append(checkAt(1))
	h.Append(checkAt(2))

	require.Equal(t, 2, h.Len())
	require.Equal(t, 5, h.Cap())
	require.Equal(t, []HealthCheck{checkAt(1), checkAt(2)}, h.Items())
}

func TestHistory_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	h.Append(checkAt(1))

	c := h.Clone()
	c.Append(checkAt(2))

	require.Equal(t, 1, h.Len())
	require.Equal(t, 2, c.Len())
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := New()
	s.CurrentIP = "192.0.2.1"
	s.LastFailover = &now
	s.History.Append(checkAt(1))

	c := s.Clone()
	c.History.Append(checkAt(2))
	*c.LastFailover = now.Add(time.Hour)

	require.Equal(t, 1, s.History.Len())
	require.Equal(t, now, *s.LastFailover)
	require.Equal(t, "192.0.2.1", c.CurrentIP)
}

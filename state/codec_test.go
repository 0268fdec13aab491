package state

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	failover := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	errMsg := "HTTP 503"
	latency := 42.5

	s := New()
	s.CurrentIP = "198.51.100.7"
	s.IsFailedOver = true
	s.ConsecutiveSuccesses = 3
	s.LastFailover = &failover
	s.History.Append(HealthCheck{Timestamp: failover, Success: false, LatencyMS: &latency, Error: &errMsg})
	s.History.Append(HealthCheck{Timestamp: failover.Add(30 * time.Second), Success: true})

	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, s.CurrentIP, got.CurrentIP)
	require.True(t, got.IsFailedOver)
	require.Equal(t, uint(3), got.ConsecutiveSuccesses)
	require.Zero(t, got.ConsecutiveFailures)
	require.Equal(t, failover, *got.LastFailover)
	require.Nil(t, got.LastRestore)
	require.Equal(t, s.History.Items(), got.History.Items())
}

func TestEncode_Shape(t *testing.T) {
	t.Parallel()

	data, err := Encode(New())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.InDelta(t, float64(SchemaVersion), raw["version"], 0)
	require.Contains(t, raw, "last_failover")
	require.Nil(t, raw["last_failover"])
	require.Equal(t, []any{}, raw["health_history"])
}

func TestDecode_SchemaMismatch(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"version": 7, "current_ip": "192.0.2.1"}`))
	require.ErrorIs(t, err, ErrSchemaVersion)
}

func TestDecode_ConflictingCountersAreReset(t *testing.T) {
	t.Parallel()

	got, err := Decode([]byte(`{
		"version": 1,
		"current_ip": "198.51.100.7",
		"is_failed_over": true,
		"consecutive_failures": 4,
		"consecutive_successes": 19
	}`))
	require.NoError(t, err)
	require.Zero(t, got.ConsecutiveFailures)
	require.Zero(t, got.ConsecutiveSuccesses)
	require.True(t, got.IsFailedOver)
	require.Equal(t, "198.51.100.7", got.CurrentIP)

	got, err = Decode([]byte(`{"version": 1, "consecutive_failures": 4}`))
	require.NoError(t, err)
	require.Equal(t, uint(4), got.ConsecutiveFailures)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"version": 1,`},
		{name: "bad timestamp", data: `{"version": 1, "last_restore": "yesterday"}`},
		{name: "bad history timestamp", data: `{"version": 1, "health_history": [{"timestamp": "soon", "success": true}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestDecode_TruncatesHistory(t *testing.T) {
	t.Parallel()

	rec := stateRecord{Version: SchemaVersion}
	for i := range 150 {
		rec.HealthHistory = append(rec.HealthHistory, checkRecord{
			Timestamp: FormatTime(checkAt(i).Timestamp),
			Success:   true,
		})
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, HistoryCapacity, got.History.Len())
	require.Equal(t, checkAt(50).Timestamp, got.History.Items()[0].Timestamp)
}

func TestFormatTime_LexicalOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(time.Second),
	}

	encoded := make([]string, 0, len(times))
	for _, tm := range times {
		encoded = append(encoded, FormatTime(tm))
	}

	require.True(t, sort.StringsAreSorted(encoded))

	for i, s := range encoded {
		parsed, err := ParseTime(s)
		require.NoError(t, err)
		require.True(t, parsed.Equal(times[i]))
	}
}

func TestParseTime_AcceptsRFC3339(t *testing.T) {
	t.Parallel()

	got, err := ParseTime("2025-06-01T14:00:05+02:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC), got)
}

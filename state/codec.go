package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is written into every encoded state. Decoding any other
// version fails with ErrSchemaVersion.
const SchemaVersion = 1

// timeLayout is fixed width so that lexical order of encoded timestamps
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrSchemaVersion is returned when persisted state was written by an
// incompatible schema.
var ErrSchemaVersion = errors.New("unsupported state schema version")

type stateRecord struct {
	Version              int           `json:"version"`
	CurrentIP            string        `json:"current_ip"`
	IsFailedOver         bool          `json:"is_failed_over"`
	ConsecutiveFailures  uint          `json:"consecutive_failures"`
	ConsecutiveSuccesses uint          `json:"consecutive_successes"`
	LastFailover         *string       `json:"last_failover"`
	LastRestore          *string       `json:"last_restore"`
	HealthHistory        []checkRecord `json:"health_history"`
}

type checkRecord struct {
	Timestamp string   `json:"timestamp"`
	Success   bool     `json:"success"`
	LatencyMS *float64 `json:"latency_ms"`
	Error     *string  `json:"error"`
}

// FormatTime renders t in the persisted timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a persisted timestamp. RFC 3339 values written by other
// tools are accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}

	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Encode serializes the state, keeping at most HistoryCapacity checks.
func Encode(s *State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}

	rec := stateRecord{
		Version:              SchemaVersion,
		CurrentIP:            s.CurrentIP,
		IsFailedOver:         s.IsFailedOver,
		ConsecutiveFailures:  s.ConsecutiveFailures,
		ConsecutiveSuccesses: s.ConsecutiveSuccesses,
		LastFailover:         formatOptionalTime(s.LastFailover),
		LastRestore:          formatOptionalTime(s.LastRestore),
		HealthHistory:        make([]checkRecord, 0),
	}

	if s.History != nil {
		items := s.History.Items()
		if len(items) > HistoryCapacity {
			items = items[len(items)-HistoryCapacity:]
		}
		for _, c := range items {
			rec.HealthHistory = append(rec.HealthHistory, checkRecord{
				Timestamp: FormatTime(c.Timestamp),
				Success:   c.Success,
				LatencyMS: c.LatencyMS,
				Error:     c.Error,
			})
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// Decode parses an encoded state. Histories longer than HistoryCapacity keep
// their newest entries. A state with both counters nonzero cannot have been
// written by the engine, so both are reset and counting starts over.
func Decode(data []byte) (*State, error) {
	rec := new(stateRecord)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if rec.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, rec.Version, SchemaVersion)
	}

	s := New()
	s.CurrentIP = rec.CurrentIP
	s.IsFailedOver = rec.IsFailedOver
	s.ConsecutiveFailures = rec.ConsecutiveFailures
	s.ConsecutiveSuccesses = rec.ConsecutiveSuccesses
	if s.ConsecutiveFailures > 0 && s.ConsecutiveSuccesses > 0 {
		s.ResetCounters()
	}

	var err error
	if s.LastFailover, err = parseOptionalTime(rec.LastFailover); err != nil {
		return nil, fmt.Errorf("last_failover: %w", err)
	}
	if s.LastRestore, err = parseOptionalTime(rec.LastRestore); err != nil {
		return nil, fmt.Errorf("last_restore: %w", err)
	}

	for i, c := range rec.HealthHistory {
		ts, err := ParseTime(c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("health_history[%d]: %w", i, err)
		}
		s.History.Append(HealthCheck{
			Timestamp: ts,
			Success:   c.Success,
			LatencyMS: c.LatencyMS,
			Error:     c.Error,
		})
	}

	return s, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil // nolint:nilnil // Absent timestamps are valid.
	}
	t, err := ParseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

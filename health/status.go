// Package health serves the monitor's liveness endpoint from a set of named checks.
package health

import (
	"encoding/json"
	"fmt"
)

// Status is the health of one check or of the whole process. Lower values are worse.
type Status int

const (
	// StatusDown means the check is failing.
	StatusDown Status = iota

	// StatusDegraded means the process works but not as configured, for
	// example while traffic is on the backup endpoint.
	StatusDegraded

	// StatusUp means the check passes.
	StatusUp

	// StatusUnknown means the check has not run yet.
	StatusUnknown
)

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusUp, StatusDown, StatusDegraded, StatusUnknown:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	case StatusDegraded:
		return "degraded"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%s is not a valid status", s)
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	for _, candidate := range []Status{StatusUp, StatusDown, StatusDegraded, StatusUnknown} {
		if candidate.String() == str {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("%q is not a valid status", str)
}

// StatusError is an error reporting a status other than down.
type StatusError struct {
	error

	Status Status
}

// NewStatusError wraps err so that the failing check reports status.
func NewStatusError(err error, status Status) *StatusError {
	return &StatusError{
		error:  err,
		Status: status,
	}
}

func (e *StatusError) Unwrap() error {
	return e.error
}

// Package dns reads and rewrites the DNS record that failover manages.
package dns

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when the provider has no record with the
// requested name and type.
var ErrRecordNotFound = errors.New("dns record not found")

// Record is a single DNS record as seen by the provider.
type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	TTL     int
}

// Provider is the subset of a DNS provider's API needed for failover.
type Provider interface {
	// GetRecord returns the record with the given name and type.
	GetRecord(ctx context.Context, name, recordType string) (*Record, error)

	// UpdateRecord points the record with the given ID at content.
	UpdateRecord(ctx context.Context, recordID, content string) error
}

package dns

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider so that every call waits for a token from limiter.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited returns next guarded by limiter.
func NewRateLimited(next Provider, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: limiter,
	}
}

func (r *RateLimited) GetRecord(ctx context.Context, name, recordType string) (*Record, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.GetRecord(ctx, name, recordType)
}

func (r *RateLimited) UpdateRecord(ctx context.Context, recordID, content string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.UpdateRecord(ctx, recordID, content)
}

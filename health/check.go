package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// defaultCheckTimeout bounds a check without WithCheckTimeout.
const defaultCheckTimeout = 5 * time.Second

// timestamp returns the current UTC time. Tests replace it.
var timestamp = func() time.Time {
	return time.Now().UTC()
}

type (
	// CheckFunc performs a check. Returning a *StatusError reports its status
	// instead of down.
	CheckFunc = func(ctx context.Context) error

	// StatusListenerFunc is called whenever the status of a check changes.
	StatusListenerFunc = func(ctx context.Context, name string, status Status)

	// CheckOption configures a Check.
	CheckOption = func(*Check)
)

// Check is a named health check that tolerates a number of contiguous failures.
type Check struct {
	name               string
	check              CheckFunc
	timeout            time.Duration
	maxContiguousFails uint
	statusListener     StatusListenerFunc

	mu              sync.Mutex
	status          Status
	contiguousFails uint
	lastSuccess     time.Time
	lastErr         error
}

// WithCheckTimeout sets the timeout of each run. Zero disables it.
func WithCheckTimeout(timeout time.Duration) CheckOption {
	return func(c *Check) {
		c.timeout = timeout
	}
}

// WithCheckMaxFailures keeps the check up until it has failed n times in a row.
func WithCheckMaxFailures(n uint) CheckOption {
	return func(c *Check) {
		c.maxContiguousFails = n
	}
}

// WithCheckOnStatusChange sets a listener for status changes.
func WithCheckOnStatusChange(listener StatusListenerFunc) CheckOption {
	return func(c *Check) {
		c.statusListener = listener
	}
}

// NewCheck creates a check. Names must be unique within a Checker.
func NewCheck(name string, fn CheckFunc, opts ...CheckOption) *Check {
	c := &Check{
		name:    name,
		check:   fn,
		timeout: defaultCheckTimeout,
		status:  StatusUnknown,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// String returns the name of the check.
func (c *Check) String() string {
	return c.name
}

// Status returns the status from the last run.
func (c *Check) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Check runs the check once and returns the resulting status and error.
func (c *Check) Check(ctx context.Context) (Status, error) {
	var (
		checkCtx context.Context
		cancel   context.CancelFunc
	)
	if c.timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		checkCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	err := c.check(checkCtx)

	c.mu.Lock()
	previous := c.status
	next := c.record(err)
	c.mu.Unlock()

	if c.statusListener != nil && previous != next {
		c.statusListener(ctx, c.name, next)
	}
	return next, err
}

// record updates the state after a run. c.mu must be held.
func (c *Check) record(err error) Status {
	if err == nil {
		c.contiguousFails = 0
		c.lastErr = nil
		c.lastSuccess = timestamp()
		c.status = StatusUp
		return c.status
	}

	c.contiguousFails++
	c.lastErr = err

	c.status = StatusDown
	if c.maxContiguousFails > 0 && c.contiguousFails < c.maxContiguousFails {
		c.status = StatusUp
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		c.status = statusErr.Status
		if !c.status.IsValid() {
			c.status = StatusUnknown
		}
	}
	return c.status
}

// StandardStatusListener logs every status change.
func StandardStatusListener(l *slog.Logger) StatusListenerFunc {
	return func(_ context.Context, name string, status Status) {
		l.Info("health check status changed",
			slog.String(logging.KeyName, name),
			slog.String(logging.KeyStatus, status.String()),
		)
	}
}

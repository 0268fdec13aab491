package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Result is the outcome of one check, or of all checks when it has details.
type Result struct {
	Status    Status             `json:"status"`
	Timestamp *time.Time         `json:"timestamp,omitempty"`
	Details   map[string]*Result `json:"details,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker) error

// WithCheckerChecks adds checks to the Checker.
func WithCheckerChecks(checks ...*Check) CheckerOption {
	return func(c *Checker) error {
		for _, check := range checks {
			if err := c.AddCheck(check); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithCheckerHTTPCodeDown sets the HTTP status code served when a check is not up.
func WithCheckerHTTPCodeDown(code int) CheckerOption {
	return func(c *Checker) error {
		c.httpStatusCodeDown = code
		return nil
	}
}

// Checker runs a group of checks in parallel.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]*Check

	httpStatusCodeUp   int
	httpStatusCodeDown int
}

// NewChecker creates a Checker.
func NewChecker(opts ...CheckerOption) (*Checker, error) {
	c := &Checker{
		checks:             make(map[string]*Check),
		httpStatusCodeUp:   http.StatusOK,
		httpStatusCodeDown: http.StatusServiceUnavailable,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply checker option: %w", err)
		}
	}

	return c, nil
}

// AddCheck adds a check to the checker.
func (c *Checker) AddCheck(check *Check) error {
	if check == nil {
		return errors.New("check is nil")
	}
	if check.name == "" {
		return errors.New("check name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.checks[check.name]; ok {
		return fmt.Errorf("check already exists with the same key: %s", check.name)
	}
	c.checks[check.name] = check
	return nil
}

// Check runs every check and returns the combined result, whose status is
// the worst of the individual statuses. Degraded counts as healthy for HTTP.
func (c *Checker) Check(ctx context.Context) *Result {
	c.mu.RLock()
	checks := make([]*Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	now := timestamp()
	result := &Result{
		Status:    StatusUp,
		Timestamp: &now,
		Details:   make(map[string]*Result, len(checks)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			status, err := check.Check(ctx)
			ts := timestamp()
			detail := &Result{Status: status, Timestamp: &ts}
			if err != nil {
				detail.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			result.Details[check.name] = detail
			if status < result.Status {
				result.Status = status
			}
		}()
	}
	wg.Wait()

	return result
}

func (c *Checker) httpCodeFromStatus(status Status) int {
	switch status {
	case StatusUp, StatusDegraded:
		return c.httpStatusCodeUp
	default:
		return c.httpStatusCodeDown
	}
}

// Handler serves the combined result as JSON.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := c.Check(r.Context())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(c.httpCodeFromStatus(result.Status))
		_ = json.NewEncoder(w).Encode(result)
	}
}

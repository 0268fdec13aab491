package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultLatencyThresholdMS is the highest latency a successful probe may
	// report and still count as healthy.
	DefaultLatencyThresholdMS = 100

	// DefaultFailureThreshold is the number of consecutive unhealthy checks
	// that triggers a failover.
	DefaultFailureThreshold = 2

	// DefaultStabilityPeriod is how long the primary must stay healthy before
	// traffic is restored to it.
	DefaultStabilityPeriod = 10 * time.Minute

	// DefaultCheckInterval is the time between monitor cycles.
	DefaultCheckInterval = 30 * time.Second
)

// Thresholds parameterise the decision engine.
type Thresholds struct {
	// LatencyThresholdMS is the inclusive latency limit for a healthy check.
	LatencyThresholdMS float64

	// FailureThreshold is the number of consecutive unhealthy checks that
	// triggers a failover.
	FailureThreshold uint

	// SuccessThreshold is the number of consecutive healthy checks that
	// triggers a restore.
	SuccessThreshold uint
}

// DefaultThresholds returns the thresholds for a 30s interval and a 10m
// stability period.
func DefaultThresholds() Thresholds {
	return NewThresholds(DefaultLatencyThresholdMS, DefaultFailureThreshold, DefaultStabilityPeriod, DefaultCheckInterval)
}

// NewThresholds derives the success threshold as the number of whole check
// intervals that fit into the stability period, with a minimum of one.
func NewThresholds(latencyThresholdMS float64, failureThreshold uint, stabilityPeriod, checkInterval time.Duration) Thresholds {
	return Thresholds{
		LatencyThresholdMS: latencyThresholdMS,
		FailureThreshold:   failureThreshold,
		SuccessThreshold:   SuccessThreshold(stabilityPeriod, checkInterval),
	}
}

// SuccessThreshold returns floor(stabilityPeriod / checkInterval), at least one.
func SuccessThreshold(stabilityPeriod, checkInterval time.Duration) uint {
	if checkInterval <= 0 || stabilityPeriod < checkInterval {
		return 1
	}
	return uint(stabilityPeriod / checkInterval)
}

// Validate reports thresholds the engine cannot operate with.
func (t Thresholds) Validate() error {
	var err error
	if t.LatencyThresholdMS <= 0 {
		err = multierr.Append(err, fmt.Errorf("latency threshold must be positive, got %v", t.LatencyThresholdMS))
	}
	if t.FailureThreshold == 0 {
		err = multierr.Append(err, errors.New("failure threshold must be at least 1"))
	}
	if t.SuccessThreshold == 0 {
		err = multierr.Append(err, errors.New("success threshold must be at least 1"))
	}
	return err
}

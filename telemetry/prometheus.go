package telemetry

import (
	"context"

	"github.com/jacobbrewer1/cloudflare-failover/metrics"
)

// Prometheus records observations and events as metrics.
type Prometheus struct {
	m *metrics.Failover
}

// NewPrometheus returns a sink writing to m.
func NewPrometheus(m *metrics.Failover) *Prometheus {
	return &Prometheus{m: m}
}

func (p *Prometheus) Observe(_ context.Context, o Observation) {
	result := "unhealthy"
	success := 0.0
	if o.Healthy {
		result = "healthy"
		success = 1
	}

	p.m.ChecksTotal.WithLabelValues(o.Domain, result).Inc()
	p.m.CheckSuccess.WithLabelValues(o.Domain).Set(success)
	p.m.ConsecutiveFailures.WithLabelValues(o.Domain).Set(float64(o.ConsecutiveFailures))
	p.m.ConsecutiveSuccesses.WithLabelValues(o.Domain).Set(float64(o.ConsecutiveSuccesses))
	p.m.IsFailedOver.WithLabelValues(o.Domain).Set(boolToFloat(o.IsFailedOver))

	if latency, ok := o.Check.Latency(); ok {
		p.m.LatencyMS.WithLabelValues(o.Domain).Set(latency)
		p.m.ProbeDuration.WithLabelValues(o.Domain).Observe(latency / 1000)
	}
}

func (p *Prometheus) Publish(_ context.Context, e Event) {
	p.m.EventsTotal.WithLabelValues(e.Domain, string(e.Type)).Inc()

	switch e.Type {
	case EventFailover, EventManualFailover:
		p.m.IsFailedOver.WithLabelValues(e.Domain).Set(1)
	case EventRestore, EventManualRestore:
		p.m.IsFailedOver.WithLabelValues(e.Domain).Set(0)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failover holds the metrics describing the monitored record and its primary.
type Failover struct {
	ChecksTotal          *prometheus.CounterVec
	CheckSuccess         *prometheus.GaugeVec
	LatencyMS            *prometheus.GaugeVec
	ProbeDuration        *prometheus.HistogramVec
	ConsecutiveFailures  *prometheus.GaugeVec
	ConsecutiveSuccesses *prometheus.GaugeVec
	IsFailedOver         *prometheus.GaugeVec
	EventsTotal          *prometheus.CounterVec
}

// NewFailover registers the failover metrics with reg. Every series is
// labelled with the managed domain.
func NewFailover(reg prometheus.Registerer) *Failover {
	factory := promauto.With(reg)
	domain := []string{"domain"}

	return &Failover{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Health checks of the primary endpoint by verdict.",
		}, []string{"domain", "result"}),
		CheckSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_check_success",
			Help:      "1 when the last health check of the primary was healthy.",
		}, domain),
		LatencyMS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_ms",
			Help:      "Latency of the last health check of the primary in milliseconds.",
		}, domain),
		ProbeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Distribution of probe latencies against the primary.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, domain),
		ConsecutiveFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Consecutive unhealthy checks of the primary.",
		}, domain),
		ConsecutiveSuccesses: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_successes",
			Help:      "Consecutive healthy checks of the primary.",
		}, domain),
		IsFailedOver: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "is_failed_over",
			Help:      "1 while the record points at the backup endpoint.",
		}, domain),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Failover events by type.",
		}, []string{"domain", "type"}),
	}
}

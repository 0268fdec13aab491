package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric exported by the service.
const namespace = "failover"

// InstrumentDuration observes request durations into metric.
func InstrumentDuration(metric *prometheus.HistogramVec, options ...promhttp.Option) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerDuration(metric, next, options...)
	}
}

// InstrumentCounter counts requests into metric.
func InstrumentCounter(metric *prometheus.CounterVec, options ...promhttp.Option) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(metric, next, options...)
	}
}

// HTTP holds the request metrics of the status API.
type HTTP struct {
	Duration *prometheus.HistogramVec
	Requests *prometheus.CounterVec
}

// NewHTTP registers the status API request metrics with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of status API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Number of status API requests.",
		}, []string{"code", "method"}),
	}
}

// Middleware returns the middlewares recording both request metrics.
func (h *HTTP) Middleware() []mux.MiddlewareFunc {
	return []mux.MiddlewareFunc{
		InstrumentDuration(h.Duration),
		InstrumentCounter(h.Requests),
	}
}

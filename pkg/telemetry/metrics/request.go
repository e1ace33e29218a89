package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/arbiter/pkg/config"
)

// RequestMetrics tracks HTTP API traffic.
//
// Metrics:
//   - arbiter_http_requests_total: Requests by route, method, and status code
//   - arbiter_http_request_duration_seconds: Request latency by route
//   - arbiter_http_requests_in_flight: Requests currently being served
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "method", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.inFlight)
	return rm
}

// Begin marks a request as in flight. The returned func records its outcome.
func (rm *RequestMetrics) Begin(route, method string) func(code int) {
	start := time.Now()
	rm.inFlight.Inc()
	return func(code int) {
		rm.inFlight.Dec()
		rm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
		rm.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

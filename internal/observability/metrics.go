package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	errors             *prometheus.CounterVec
	sweepRuns          *prometheus.CounterVec
	sweepDuration      prometheus.Histogram
	breachesDetected   *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	transitionRejected *prometheus.CounterVec
	healthFallbacks    prometheus.Counter
}

// NewMetrics registers collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "support_sla"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_sweep_runs_total",
			Help:      "Breach sweep runs by outcome.",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sla_sweep_duration_seconds",
			Help:      "Breach sweep wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		breachesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_breaches_detected_total",
			Help:      "Tickets newly flagged as breached, by priority.",
		}, []string{"priority"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_total",
			Help:      "Applied ticket status transitions.",
		}, []string{"from", "to"}),
		transitionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_rejected_total",
			Help:      "Rejected ticket status transitions.",
		}, []string{"from", "to"}),
		healthFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_score_fallbacks_total",
			Help:      "Health score calculations that fell back to the neutral score.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestLatency,
		m.errors,
		m.sweepRuns,
		m.sweepDuration,
		m.breachesDetected,
		m.transitions,
		m.transitionRejected,
		m.healthFallbacks,
	)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordSweep records one sweep run.
func (m *Metrics) RecordSweep(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordBreach counts a newly detected breach.
func (m *Metrics) RecordBreach(priority string) {
	if m == nil {
		return
	}
	m.breachesDetected.WithLabelValues(priority).Inc()
}

// RecordTransition counts an applied status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected counts an illegal status change request.
func (m *Metrics) RecordTransitionRejected(from, to string) {
	if m == nil {
		return
	}
	m.transitionRejected.WithLabelValues(from, to).Inc()
}

// RecordHealthFallback counts a health score that fell back to 100.
func (m *Metrics) RecordHealthFallback() {
	if m == nil {
		return
	}
	m.healthFallbacks.Inc()
}

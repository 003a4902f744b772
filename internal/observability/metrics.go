package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	sweeps          *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	slaTiers        *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	routing         *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetrics initializes and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grievance_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_sweeps_total",
			Help: "Periodic sweep runs by job and outcome",
		}, []string{"job", "outcome"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grievance_sweep_duration_seconds",
			Help:    "Duration of periodic sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"job"}),
		slaTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_sla_tier_changes_total",
			Help: "SLA tier transitions observed by the sweep",
		}, []string{"tier"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_escalations_total",
			Help: "Escalations by trigger and urgency",
		}, []string{"trigger", "urgency"}),
		routing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_routing_decisions_total",
			Help: "Routing decisions by method",
		}, []string{"method"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_notifications_total",
			Help: "Notification attempts by event and outcome",
		}, []string{"event", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.sweeps,
		m.sweepDuration,
		m.slaTiers,
		m.escalations,
		m.routing,
		m.notifications,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

func (m *Metrics) RecordSweep(job, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(job, outcome).Inc()
	m.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *Metrics) RecordSLATier(tier string) {
	if m == nil {
		return
	}
	m.slaTiers.WithLabelValues(tier).Inc()
}

func (m *Metrics) RecordEscalation(trigger, urgency string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(trigger, urgency).Inc()
}

func (m *Metrics) RecordRouting(method string) {
	if m == nil {
		return
	}
	m.routing.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordNotification(event, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, outcome).Inc()
}

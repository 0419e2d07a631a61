package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the service's Prometheus instrumentation on a private
// registry, so the default registry's globals never leak into the scrape.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sweepRuns     *prometheus.CounterVec
	sweepAffected *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// New builds the metric set and registers it together with the standard Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_sweep_runs_total",
			Help: "Sweep executions by sweep name and result.",
		}, []string{"sweep", "result"}),
		sweepAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_sweep_affected_total",
			Help: "Rows transitioned by each sweep.",
		}, []string{"sweep"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_transitions_total",
			Help: "Enrollment status transitions by target status and origin.",
		}, []string{"status", "origin"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.sweepRuns,
		m.sweepAffected,
		m.transitions,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSweep records one sweep execution and how many rows it moved.
func (m *Metrics) ObserveSweep(sweep string, affected int64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(sweep, result).Inc()
	if affected > 0 {
		m.sweepAffected.WithLabelValues(sweep).Add(float64(affected))
	}
}

// ObserveTransition records enrollment status transitions.
func (m *Metrics) ObserveTransition(status, origin string, count int64) {
	m.transitions.WithLabelValues(status, origin).Add(float64(count))
}

// Package metrics exposes Prometheus collectors for refreshes and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agendacal"

// Metrics groups the collectors on a private registry, so tests and multiple
// servers in one process do not collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	refreshes       prometheus.Counter
	refreshFailures prometheus.Counter
	refreshDuration prometheus.Histogram
	eventsLoaded    prometheus.Gauge
	lastRefreshUnix prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "refresh", Name: "total",
			Help: "Number of source refreshes attempted.",
		}),
		refreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "refresh", Name: "failures_total",
			Help: "Number of refreshes where at least one source failed.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "refresh", Name: "duration_seconds",
			Help:    "Duration of source refreshes.",
			Buckets: prometheus.DefBuckets,
		}),
		eventsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "events_loaded",
			Help: "Events held after the last refresh.",
		}),
		lastRefreshUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "refresh", Name: "last_success_unix",
			Help: "Unix time of the last refresh that stored events.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by endpoint, method and status.",
		}, []string{"endpoint", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
	}
	reg.MustRegister(
		m.refreshes, m.refreshFailures, m.refreshDuration,
		m.eventsLoaded, m.lastRefreshUnix,
		m.httpRequests, m.httpRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh records one refresh. failed is true when any source errored;
// stored is the number of events kept afterwards.
func (m *Metrics) RecordRefresh(d time.Duration, failed bool, stored int) {
	m.refreshes.Inc()
	m.refreshDuration.Observe(d.Seconds())
	if failed {
		m.refreshFailures.Inc()
	}
	m.eventsLoaded.Set(float64(stored))
	m.lastRefreshUnix.Set(float64(time.Now().Unix()))
}

// Middleware records request count and latency under endpoint.
func (m *Metrics) Middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.httpRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(rw.status)).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

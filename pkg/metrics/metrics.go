// Package metrics provides Prometheus collectors for foraker dispatch and
// HTTP request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/davewasmer/foraker/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Config defines configuration for the metrics collectors.
type Config struct {
	// Registry receives the collectors. Defaults to the prometheus default
	// registry when nil.
	Registry prometheus.Registerer

	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string

	// DurationBuckets overrides the histogram buckets for dispatch and
	// request durations. Defaults to prometheus.DefBuckets.
	DurationBuckets []float64
}

// DispatchMetrics collects dispatch outcomes and latencies, plus HTTP-level
// request metrics when its Middleware is installed.
type DispatchMetrics struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with the configured registry.
func New(config Config) (*DispatchMetrics, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	buckets := config.DurationBuckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	m := &DispatchMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "dispatches_total",
			Help:      "Total controller dispatches by terminal outcome.",
		}, []string{"controller", "action", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Controller dispatch duration in seconds.",
			Buckets:   buckets,
		}, []string{"controller", "action"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   buckets,
		}, []string{"method", "path"}),
	}

	collectors := []prometheus.Collector{
		m.dispatches, m.dispatchDuration, m.requests, m.requestDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveDispatch records one dispatch outcome and its duration.
func (m *DispatchMetrics) ObserveDispatch(controller, action, outcome string, duration time.Duration) {
	m.dispatches.WithLabelValues(controller, action, outcome).Inc()
	m.dispatchDuration.WithLabelValues(controller, action).Observe(duration.Seconds())
}

// DispatchCounter returns the underlying counter for one label combination,
// mainly useful for asserting on recorded values in tests.
func (m *DispatchMetrics) DispatchCounter(controller, action, outcome string) prometheus.Counter {
	return m.dispatches.WithLabelValues(controller, action, outcome)
}

// Middleware returns an HTTP middleware that records request counts and
// latencies for every request passing through it.
func (m *DispatchMetrics) Middleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
			m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter is a wrapper around http.ResponseWriter that captures the
// status code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying
// ResponseWriter.WriteHeader.
func (w *statusWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush calls the underlying ResponseWriter.Flush if it implements
// http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

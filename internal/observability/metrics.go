// Package observability exposes the Prometheus instrumentation shared by
// the HTTP layer, the task service, and the background worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the application registers. A single
// instance is created at startup and handed to each component.
type Metrics struct {
	registry *prometheus.Registry

	// TasksCreated counts accepted submissions by task type.
	TasksCreated *prometheus.CounterVec

	// TasksCompleted counts terminal transitions by task type and final
	// status (ready or error).
	TasksCompleted *prometheus.CounterVec

	// TaskDuration observes wall time from submission to terminal status.
	TaskDuration *prometheus.HistogramVec

	// WorkerPassDuration observes a single promotion or execution pass.
	WorkerPassDuration *prometheus.HistogramVec

	// WorkerPassErrors counts failed worker passes by pass name.
	WorkerPassErrors *prometheus.CounterVec

	// HTTPRequests counts HTTP requests by method, route and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes HTTP request latency by method and route.
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TasksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentiq",
			Name:      "tasks_created_total",
			Help:      "Number of tasks accepted for processing.",
		}, []string{"type"}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentiq",
			Name:      "tasks_completed_total",
			Help:      "Number of tasks that reached a terminal status.",
		}, []string{"type", "status"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentiq",
			Name:      "task_duration_seconds",
			Help:      "Seconds from task submission to terminal status.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"type"}),
		WorkerPassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentiq",
			Name:      "worker_pass_duration_seconds",
			Help:      "Duration of a single worker pass.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pass"}),
		WorkerPassErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentiq",
			Name:      "worker_pass_errors_total",
			Help:      "Number of worker passes that ended in an error.",
		}, []string{"pass"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentiq",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests handled.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentiq",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.TasksCreated,
		m.TasksCompleted,
		m.TaskDuration,
		m.WorkerPassDuration,
		m.WorkerPassErrors,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Handler returns the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response code written by the handler chain.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the handler chain with request count and latency
// metrics. The route label is the matched chi pattern, not the raw path,
// so label cardinality stays bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		elapsed := time.Since(start).Seconds()
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed)
	})
}

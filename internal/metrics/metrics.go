// Package metrics exposes Prometheus metrics for the problem admin API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns a registry and the metrics recorded on it.
type Manager struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	problemsCreated   prometheus.Counter
	testCasesUploaded prometheus.Counter
	solutionsCreated  prometheus.Counter
	loginLockouts     prometheus.Counter
	eventFailures     *prometheus.CounterVec
}

// NewManager registers the metrics on a fresh registry, together with the
// Go runtime and process collectors.
func NewManager() *Manager {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	const ns = "ojadmin"
	return &Manager{
		registry: reg,
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		problemsCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "problems_created_total",
			Help:      "Problems created.",
		}),
		testCasesUploaded: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "testcases_uploaded_total",
			Help:      "Test cases uploaded.",
		}),
		solutionsCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "solutions_created_total",
			Help:      "Solutions published.",
		}),
		loginLockouts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "login_lockouts_total",
			Help:      "Client addresses locked out after repeated login failures.",
		}),
		eventFailures: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published, by channel.",
		}, []string{"channel"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ProblemCreated counts a created problem. Safe on a nil Manager.
func (m *Manager) ProblemCreated() {
	if m != nil {
		m.problemsCreated.Inc()
	}
}

// TestCaseUploaded counts an uploaded test case. Safe on a nil Manager.
func (m *Manager) TestCaseUploaded() {
	if m != nil {
		m.testCasesUploaded.Inc()
	}
}

// SolutionCreated counts a published solution. Safe on a nil Manager.
func (m *Manager) SolutionCreated() {
	if m != nil {
		m.solutionsCreated.Inc()
	}
}

// LoginLockout counts an address lockout. Safe on a nil Manager.
func (m *Manager) LoginLockout() {
	if m != nil {
		m.loginLockouts.Inc()
	}
}

// EventFailed counts an event that could not be published. Safe on a nil
// Manager.
func (m *Manager) EventFailed(channel string) {
	if m != nil {
		m.eventFailures.WithLabelValues(channel).Inc()
	}
}

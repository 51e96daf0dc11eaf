package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision metrics
	GuardDecisionsTotal *prometheus.CounterVec
	GuardStaleDiscarded prometheus.Counter

	// Identity metrics
	IdentityResolutionDuration prometheus.Histogram
	IdentityResolutionErrors   prometheus.Counter
	IdentityRoleAnomaliesTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communityhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "communityhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communityhub_guard_decisions_total",
				Help: "Total number of terminal access guard decisions",
			},
			[]string{"guard", "state", "reason"},
		),
		GuardStaleDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "communityhub_guard_stale_evaluations_total",
				Help: "Guard evaluations discarded because a newer request superseded them",
			},
		),

		IdentityResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "communityhub_identity_resolution_duration_seconds",
				Help:    "Time spent resolving a principal's roles",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		IdentityResolutionErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "communityhub_identity_resolution_errors_total",
				Help: "Identity resolutions that failed on a store lookup",
			},
		),
		IdentityRoleAnomaliesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "communityhub_identity_role_anomalies_total",
				Help: "Principals found with more than one relation in the same organization",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communityhub_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communityhub_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communityhub_cache_invalidations_total",
				Help: "Total number of cache invalidations",
			},
			[]string{"cache"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.GuardDecisionsTotal,
			m.GuardStaleDiscarded,
			m.IdentityResolutionDuration,
			m.IdentityResolutionErrors,
			m.IdentityRoleAnomaliesTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CacheInvalidationsTotal,
		)
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGuardDecision records a terminal guard decision
func (m *Metrics) RecordGuardDecision(guard, state, reason string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(guard, state, reason).Inc()
}

// RecordStaleEvaluation records a discarded guard evaluation
func (m *Metrics) RecordStaleEvaluation() {
	if m == nil {
		return
	}
	m.GuardStaleDiscarded.Inc()
}

// RecordIdentityResolution records one identity resolution
func (m *Metrics) RecordIdentityResolution(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.IdentityResolutionDuration.Observe(duration.Seconds())
	if err != nil {
		m.IdentityResolutionErrors.Inc()
	}
}

// RecordRoleAnomaly records a principal holding overlapping relations
func (m *Metrics) RecordRoleAnomaly() {
	if m == nil {
		return
	}
	m.IdentityRoleAnomaliesTotal.Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordCacheInvalidation records a cache invalidation
func (m *Metrics) RecordCacheInvalidation(cache string) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.WithLabelValues(cache).Inc()
}

// Handler returns the Prometheus scrape handler for the registry
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts and durations. pathLabel maps a
// request to a low-cardinality label, typically the matched route template.
func (m *Metrics) HTTPMiddleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if pathLabel != nil {
				path = pathLabel(r)
			}
			m.RecordHTTPRequest(r.Method, path, rw.status, time.Since(start))
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

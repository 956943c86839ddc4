package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics.
var (
	syncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clientflow_syncs_total",
			Help: "Completed sync runs by outcome (ok, partial, failed).",
		},
		[]string{"outcome"},
	)

	registryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clientflow_registry_requests_total",
			Help: "Upstream registry HTTP calls by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	tokenRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clientflow_registry_token_refreshes_total",
			Help: "OAuth token refreshes against the registry token endpoint.",
		},
	)

	rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clientflow_renders_total",
			Help: "Document render results by output mode.",
		},
		[]string{"mode"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration)
	prometheus.MustRegister(syncsTotal, registryRequestsTotal, tokenRefreshesTotal, rendersTotal)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSync records the outcome of one sync run.
func ObserveSync(outcome string) {
	syncsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRegistryCall records an upstream registry call.
func ObserveRegistryCall(endpoint string, status int) {
	registryRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// ObserveTokenRefresh records a token refresh attempt.
func ObserveTokenRefresh() {
	tokenRefreshesTotal.Inc()
}

// ObserveRender records a render result by mode.
func ObserveRender(mode string) {
	rendersTotal.WithLabelValues(mode).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	switch {
	case strings.HasPrefix(path, "/v1/registry/documents/") && path != "/v1/registry/documents/":
		return "/v1/registry/documents/:id"
	case strings.HasPrefix(path, "/v1/files/") && path != "/v1/files/":
		return "/v1/files/:name"
	case strings.HasPrefix(path, "/v1/records/") && path != "/v1/records/":
		return "/v1/records/:id"
	}
	return path
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

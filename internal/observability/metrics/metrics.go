// Package metrics provides Prometheus instrumentation for ethbinder.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification metrics
	verificationTotal    *prometheus.CounterVec
	verificationDuration prometheus.Histogram

	// Outbound GitHub API metrics
	githubRequestsTotal *prometheus.CounterVec
	githubDuration      *prometheus.HistogramVec
)

// Init initializes the metrics system. Calling it again replaces the
// registry, which keeps tests independent of each other.
func Init(enabledFlag bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enabledFlag
	if !enabled {
		registry = nil
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	verificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethbinder_verification_total",
			Help: "Total number of identity binding verifications by outcome",
		},
		[]string{"outcome"},
	)

	verificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ethbinder_verification_duration_seconds",
			Help:    "End-to-end verification latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	githubRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethbinder_github_requests_total",
			Help: "Total number of GitHub API calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	githubDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ethbinder_github_request_duration_seconds",
			Help:    "GitHub API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpDuration,
		verificationTotal,
		verificationDuration,
		githubRequestsTotal,
		githubDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

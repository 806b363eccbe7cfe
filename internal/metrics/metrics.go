// Package metrics exposes Prometheus collectors for the collector trigger service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by collector runs and config saves.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusTimeout = "timeout"
	StatusInvalid = "invalid"
)

var (
	collectorRunsTotal          *prometheus.CounterVec
	collectorRunDurationSeconds prometheus.Histogram
	collectorRunsInFlight       prometheus.Gauge
	configSavesTotal            *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		collectorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_runs_total",
				Help: "Total number of collector runs, labeled by status.",
			},
			[]string{"status"},
		)

		collectorRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collector_run_duration_seconds",
				Help:    "Histogram of collector run durations.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		collectorRunsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_runs_in_flight",
				Help: "Number of collector processes currently running.",
			},
		)

		configSavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_config_saves_total",
				Help: "Total number of collector config save requests, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCollectorRun records the outcome and duration of one collector run.
func ObserveCollectorRun(status string, duration time.Duration) {
	collectorRunsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		collectorRunDurationSeconds.Observe(duration.Seconds())
	}
}

// IncCollectorRunsInFlight increments the running collectors gauge.
func IncCollectorRunsInFlight() {
	collectorRunsInFlight.Inc()
}

// DecCollectorRunsInFlight decrements the running collectors gauge.
func DecCollectorRunsInFlight() {
	collectorRunsInFlight.Dec()
}

// ObserveConfigSave increments the config save counter for the given status.
func ObserveConfigSave(status string) {
	configSavesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus collectors for the screener and the
// in-process run counters used for error-ratio reporting.
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

// Item outcome labels.
const (
	OutcomeResult = "result"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
)

var (
	screenerItemsTotal             *prometheus.CounterVec
	screenerCheckpointSavesTotal   *prometheus.CounterVec
	screenerActiveWorkers          prometheus.Gauge
	screenerRateLimitDelaysSeconds *prometheus.HistogramVec
	screenerFetchDurationSeconds   prometheus.Histogram
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec
	screenerBaselineFailuresTotal  prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		screenerItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_items_total",
				Help: "Total number of work items completed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		screenerCheckpointSavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_checkpoint_saves_total",
				Help: "Total number of checkpoint saves, labeled by status.",
			},
			[]string{"status"},
		)

		screenerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		screenerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"scope"},
		)

		screenerFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_fetch_duration_seconds",
				Help:    "Histogram of series fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)

		screenerBaselineFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screener_baseline_failures_total",
				Help: "Total number of runs aborted because the baseline was unavailable.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the item counter for the given outcome.
func ObserveItem(outcome string) {
	Init()
	screenerItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCheckpointSave records a checkpoint save attempt.
func ObserveCheckpointSave(err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	screenerCheckpointSavesTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records the latency of a single series fetch.
func ObserveFetch(duration time.Duration) {
	Init()
	screenerFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveBaselineFailure counts a run aborted by a missing baseline.
func ObserveBaselineFailure() {
	Init()
	screenerBaselineFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	screenerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	screenerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(scope string, duration time.Duration) {
	Init()
	screenerRateLimitDelaysSeconds.WithLabelValues(scope).Observe(duration.Seconds())
}

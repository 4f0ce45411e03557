// Package metrics exposes Prometheus counters and histograms for a
// long-lived fmm-cli serve process: LET exchange volume, request-service
// cache hit/miss counts, per-pass durations, and on-demand request
// round-trip latency. OpenTelemetry spans (pkg/telemetry) explain a
// single evaluation; these gauges are for watching many evaluations
// over time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// letBytes tracks LET exchange volume by direction and payload kind.
	// Labels: direction (sent, received), kind (cells, bodies).
	letBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fmm",
		Subsystem: "let",
		Name:      "bytes_total",
		Help:      "Total bytes exchanged building the local essential tree",
	}, []string{"direction", "kind"})

	// requestCacheResults counts request-service cache outcomes.
	// Labels: cache (cell, child, body), result (hit, miss).
	requestCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fmm",
		Subsystem: "request",
		Name:      "cache_results_total",
		Help:      "On-demand request cache hits and misses by cache kind",
	}, []string{"cache", "result"})

	// requestLatency measures on-demand request round-trip latency.
	// Labels: message_type (the request tag's MessageType name, e.g.
	// CHILDCELLTAG, BODYTAG, LEVELTAG).
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fmm",
		Subsystem: "request",
		Name:      "latency_seconds",
		Help:      "On-demand request round-trip latency in seconds",
		Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"message_type"})

	// passDuration measures the wall time of one FMM pass.
	// Labels: pass (the only value recorded is "evaluate", one whole
	// Driver.Evaluate call from fmm-cli serve).
	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fmm",
		Subsystem: "evaluation",
		Name:      "pass_duration_seconds",
		Help:      "Duration of one evaluation pass",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"pass"})

	// evaluationsTotal counts completed evaluation sweeps, for serve's
	// periodic re-evaluation loop.
	// Labels: status (ok, error).
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fmm",
		Subsystem: "evaluation",
		Name:      "runs_total",
		Help:      "Total completed evaluation sweeps",
	}, []string{"status"})
)

// RecordLETBytes records bytes exchanged during LET construction.
func RecordLETBytes(direction, kind string, n int) {
	letBytes.WithLabelValues(direction, kind).Add(float64(n))
}

// RecordCacheHit records a request-service cache hit for cache (cell,
// child, or body).
func RecordCacheHit(cache string) {
	requestCacheResults.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a request-service cache miss for cache (cell,
// child, or body).
func RecordCacheMiss(cache string) {
	requestCacheResults.WithLabelValues(cache, "miss").Inc()
}

// RecordRequestLatency records the round-trip latency of a serviced
// on-demand request.
func RecordRequestLatency(messageType string, seconds float64) {
	requestLatency.WithLabelValues(messageType).Observe(seconds)
}

// RecordPassDuration records the wall time of one evaluation pass.
func RecordPassDuration(pass string, seconds float64) {
	passDuration.WithLabelValues(pass).Observe(seconds)
}

// RecordEvaluation records the outcome of one completed evaluation sweep.
func RecordEvaluation(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	evaluationsTotal.WithLabelValues(status).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the rate limiting Prometheus collectors.
type Metrics struct {
	Decisions            *prometheus.CounterVec
	StoreErrors          prometheus.Counter
	CheckDurationSeconds prometheus.Histogram
	TrackedIdentifiers   prometheus.Gauge
	CleanupRunsTotal     *prometheus.CounterVec
	CleanupEvictedTotal  prometheus.Counter
	CleanupDuration      prometheus.Histogram
}

// New registers the rate limit collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_ratelimit_decisions_total",
			Help: "Rate limit decisions by policy and outcome",
		}, []string{"policy", "outcome"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_ratelimit_store_errors_total",
			Help: "Rate limit store failures (requests fail open)",
		}),
		CheckDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_ratelimit_check_duration_seconds",
			Help:    "Duration of rate limit checks in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		TrackedIdentifiers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meridian_ratelimit_tracked_identifiers",
			Help: "Identifiers currently tracked by the in-memory store",
		}),
		CleanupRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_ratelimit_cleanup_runs_total",
			Help: "Total number of cleanup runs",
		}, []string{"status"}),
		CleanupEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_ratelimit_cleanup_evicted_total",
			Help: "Identifiers evicted by the cleanup worker",
		}),
		CleanupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "meridian_ratelimit_cleanup_duration_seconds",
			Help: "Duration of cleanup runs in seconds",
		}),
	}
}

// RecordDecision counts one rate limit decision.
func (m *Metrics) RecordDecision(policy string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.Decisions.WithLabelValues(policy, outcome).Inc()
}

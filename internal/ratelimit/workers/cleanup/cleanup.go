// Package cleanup evicts fully expired rate limit windows in the
// background so idle identifiers do not accumulate in memory.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"meridian/internal/ratelimit/metrics"
	"meridian/internal/ratelimit/store/window"
)

// Result describes one cleanup run.
type Result struct {
	Evicted  int
	Tracked  int
	Duration time.Duration
}

// Option configures the Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval sets the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker periodically prunes the store. Correctness never depends on it:
// the store prunes each key inline during checks, so the worker only
// reclaims memory held by identifiers that stopped sending requests.
type Worker struct {
	store    window.Pruner
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

// New creates a cleanup worker for the given store.
func New(store window.Pruner, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		logger:   slog.Default(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the sweep loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			res, err := w.RunOnce(ctx)
			duration := time.Since(start)

			if err != nil {
				w.logger.Error("ratelimit_cleanup_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if w.metrics != nil {
					w.metrics.CleanupRunsTotal.WithLabelValues("error").Inc()
					w.metrics.CleanupDuration.Observe(duration.Seconds())
				}
				continue
			}

			res.Duration = duration
			w.logger.Debug("ratelimit_cleanup_completed",
				"evicted", res.Evicted,
				"tracked", res.Tracked,
				"duration_ms", duration.Milliseconds(),
			)

			if w.metrics != nil {
				w.metrics.CleanupEvictedTotal.Add(float64(res.Evicted))
				w.metrics.TrackedIdentifiers.Set(float64(res.Tracked))
				w.metrics.CleanupRunsTotal.WithLabelValues("success").Inc()
				w.metrics.CleanupDuration.Observe(duration.Seconds())
			}

		case <-ctx.Done():
			w.logger.Info("ratelimit cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	evicted, err := w.store.Prune(ctx, time.Now())
	if err != nil {
		return Result{}, err
	}
	return Result{Evicted: evicted, Tracked: w.store.Len()}, nil
}

// Package service selects rate limit policies and runs checks against the
// configured store.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"meridian/internal/platform/config"
	"meridian/internal/ratelimit/metrics"
	"meridian/internal/ratelimit/models"
	"meridian/internal/ratelimit/store/window"
	"meridian/pkg/platform/privacy"
	"meridian/pkg/platform/tracer"
)

// Policies holds the two policies the API enforces.
type Policies struct {
	Read  models.Policy
	Write models.Policy
}

// DefaultPolicies returns the production defaults: 100 reads and 20
// writes per identifier per minute.
func DefaultPolicies() Policies {
	return Policies{
		Read:  models.Policy{Name: models.PolicyRead, MaxRequests: 100, Window: time.Minute},
		Write: models.Policy{Name: models.PolicyWrite, MaxRequests: 20, Window: time.Minute},
	}
}

// PoliciesFromConfig builds the policy pair from service configuration,
// falling back to defaults for invalid values.
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	policies := DefaultPolicies()
	if read, err := models.NewPolicy(models.PolicyRead, cfg.ReadMax, cfg.ReadWindow); err == nil {
		policies.Read = read
	}
	if write, err := models.NewPolicy(models.PolicyWrite, cfg.WriteMax, cfg.WriteWindow); err == nil {
		policies.Write = write
	}
	return policies
}

// ForMethod returns the policy for an HTTP method: mutating methods get
// the strict write policy, everything else the lenient read policy.
func (p Policies) ForMethod(method string) models.Policy {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return p.Write
	default:
		return p.Read
	}
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer attaches a tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Service runs rate limit checks. Each (policy, identifier) pair tracks
// its own window, so read traffic never consumes write capacity and one
// client's exhaustion never throttles another.
type Service struct {
	store    window.Store
	policies Policies
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

// New creates a rate limit service backed by the given store.
func New(store window.Store, policies Policies, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policies: policies,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policies returns the configured policy pair.
func (s *Service) Policies() Policies { return s.policies }

// Check evaluates the request identified by identifier (normally the
// client IP) against the policy for the HTTP method, at the instant now.
//
// Store failures fail open: an unreachable Redis throttles nobody, it
// only logs and counts the error. Availability of the API is worth more
// than strict enforcement during a backend outage.
func (s *Service) Check(ctx context.Context, identifier, method string, now time.Time) (models.Decision, models.Policy) {
	policy := s.policies.ForMethod(method)
	key := policy.Name + ":" + identifier

	ctx, span := s.tracer.Start(ctx, tracer.SpanRateLimit)
	start := time.Now()
	decision, err := s.store.Allow(ctx, key, policy, now)
	span.End(err)

	if s.metrics != nil {
		s.metrics.CheckDurationSeconds.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		s.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
			"policy", policy.Name,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.StoreErrors.Inc()
		}
		return models.AllowedDecision(policy, 0, now.Add(policy.Window)), policy
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(policy.Name, decision.Allowed)
	}

	if !decision.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"policy", policy.Name,
			"identifier", privacy.AnonymizeIP(identifier),
			"limit", decision.Limit,
			"retry_after", decision.RetryAfter,
		)
	}

	return decision, policy
}

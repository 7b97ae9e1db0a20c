// Package server assembles the HTTP router: the middleware pipeline,
// health and metrics endpoints, and the versioned API routes.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	orderhandler "meridian/internal/order/handler"
	"meridian/internal/platform/config"
	"meridian/internal/platform/health"
	ratelimitmw "meridian/internal/ratelimit/middleware"
	userhandler "meridian/internal/user/handler"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/platform/middleware/cors"
	"meridian/pkg/platform/middleware/hosts"
	"meridian/pkg/platform/middleware/metadata"
	"meridian/pkg/platform/middleware/request"
	"meridian/pkg/platform/middleware/requesttime"
	"meridian/pkg/platform/middleware/security"
)

// Deps carries the constructed components the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Health   *health.Handler
	Users    *userhandler.Handler
	Orders   *orderhandler.Handler
	Verifier auth.TokenVerifier

	// Limiter is the rate limit checker. Nil disables rate limiting.
	Limiter ratelimitmw.Checker

	// Requests instruments request counts and latencies. Nil disables
	// instrumentation.
	Requests *request.Metrics

	// Gatherer backs the /metrics endpoint. Nil hides the endpoint.
	Gatherer prometheus.Gatherer
}

// New builds the router. Middleware order is load-bearing: the request ID
// and arrival time are stamped before anything can log or decide, recovery
// wraps everything that can panic, and the rate limiter sees the client IP
// the metadata middleware resolved. The timeout sits innermost so rejected
// requests never start the clock.
func New(cfg config.HTTPConfig, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(deps.Logger))
	r.Use(security.Headers)
	r.Use(request.Logger(deps.Logger))
	if deps.Requests != nil {
		r.Use(request.Instrument(deps.Requests))
	}
	r.Use(metadata.ClientMetadata(metadata.Config{TrustedProxies: cfg.TrustedProxies}))
	r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	r.Use(hosts.Trusted(cfg.TrustedHosts))
	r.Use(cors.Middleware(cors.Config{
		Origins:          cfg.CORSOrigins,
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}))
	if deps.Limiter != nil {
		r.Use(ratelimitmw.RateLimit(deps.Limiter))
	}
	r.Use(request.Timeout(cfg.RequestTimeout))

	deps.Health.Register(r)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	deps.Users.Register(r, deps.Verifier)
	deps.Orders.Register(r, deps.Verifier)

	return r
}

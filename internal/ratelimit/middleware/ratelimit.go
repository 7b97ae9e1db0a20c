// Package middleware enforces rate limit decisions at the HTTP boundary.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meridian/internal/ratelimit/models"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/requestcontext"
)

// RejectedDetail is the client-facing message on 429 responses.
const RejectedDetail = "Rate limit exceeded. Please try again later."

// Checker runs one rate limit check. Implemented by the ratelimit service.
type Checker interface {
	Check(ctx context.Context, identifier, method string, now time.Time) (models.Decision, models.Policy)
}

// RejectedResponse is the 429 response body.
type RejectedResponse struct {
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"`
}

// exempt paths bypass rate limiting entirely: wedging health probes or
// metrics scrapes behind a limit would blind the operators debugging the
// very overload that exhausted it.
func exempt(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}

// RateLimit checks every non-exempt request against its method's policy.
// The identifier is the client IP resolved by the metadata middleware.
// Denied requests are answered directly with 429; allowed ones proceed
// with the X-RateLimit-* headers describing the remaining budget.
func RateLimit(checker Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			decision, _ := checker.Check(ctx, requestcontext.ClientIP(ctx), r.Method, requestcontext.Now(ctx))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				h.Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, RejectedResponse{
					Detail:     RejectedDetail,
					RetryAfter: decision.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Package requestcontext carries request-scoped values: the request ID, the
// request-start timestamp, and client metadata extracted by middleware.
// All operations within a single HTTP request observe the same "now",
// keeping timestamps consistent across logs, domain records, and rate-limit
// decisions made for that request.
package requestcontext

import (
	"context"
	"time"
)

type (
	contextKeyRequestID      struct{}
	contextKeyRequestTime    struct{}
	contextKeyClientIP       struct{}
	contextKeyUserAgent      struct{}
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID retrieves the request ID from context, or "" when absent.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithTime injects a specific time into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain,
// workers that need consistent time within a batch, and CLI commands.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithClientMetadata stores the client IP and User-Agent in the context.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, ip)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

// ClientIP retrieves the client IP from context, or "unknown" when absent.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyClientIP{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// UserAgent retrieves the client User-Agent from context, or "" when absent.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyUserAgent{}).(string); ok {
		return v
	}
	return ""
}

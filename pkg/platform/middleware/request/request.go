// Package request provides baseline HTTP middleware: request ID propagation,
// structured request logging, panic recovery, timeouts, and body size limits.
package request

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	domainerrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/platform/privacy"
	"meridian/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a request ID. An inbound
// X-Request-ID header is trusted if present; otherwise a new UUID is
// generated. The ID is stored in the request context and echoed on the
// response so clients can correlate log entries.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter captures the status code and bytes written so logging and
// metrics middleware can observe the outcome of the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger emits one structured log line per request with method, path,
// status, duration, anonymized client IP, and request ID. Health probe
// 200s are logged at debug to keep the noise floor down.
//
// Logger must wrap Recovery (Logger outer, Recovery inner) so that a
// panicking handler still produces a log entry: Recovery converts the
// panic into a 500 response before control returns here.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			ctx := r.Context()
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rw.written),
				slog.String("client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx))),
				slog.String("request_id", requestcontext.RequestID(ctx)),
			}

			switch {
			case rw.status >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "request completed", attrs...)
			case r.URL.Path == "/health" && rw.status == http.StatusOK:
				log.DebugContext(ctx, "request completed", attrs...)
			default:
				log.InfoContext(ctx, "request completed", attrs...)
			}
		})
	}
}

// Recovery converts panics in downstream handlers into a 500 response with
// the generic error body, never leaking the panic value to the client.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", requestcontext.RequestID(r.Context())),
					)
					httputil.WriteError(w, domainerrors.New(
						domainerrors.CodeInternal, httputil.GenericInternalDetail))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Timeout cancels the request context after d. Handlers that respect
// context cancellation surface the timeout as a 504 through the error
// mapper; handlers that have already written are unaffected.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

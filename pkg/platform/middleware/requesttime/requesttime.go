// Package requesttime stamps each request with a single arrival time so
// every stage of the pipeline observes the same clock reading.
package requesttime

import (
	"net/http"
	"time"

	"meridian/pkg/requestcontext"
)

// Middleware records time.Now() once at the start of the request and
// stores it in the context. Rate limiting, auditing, and timestamps in
// responses all read this value via requestcontext.Now, which keeps
// decisions within one request mutually consistent and lets tests inject
// a fixed time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

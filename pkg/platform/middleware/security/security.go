// Package security applies standard security response headers.
package security

import "net/http"

// Headers sets defensive browser headers on every response. The headers
// are written before the downstream handler runs, so they are present even
// when an inner stage short-circuits the request (rate limit rejections,
// host validation failures, and error responses included).
func Headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		next.ServeHTTP(w, r)
	})
}

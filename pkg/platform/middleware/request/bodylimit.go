package request

import "net/http"

// DefaultMaxBodyBytes caps request bodies at 1 MiB, which is generous for
// the JSON payloads this API accepts.
const DefaultMaxBodyBytes = 1 << 20

// BodyLimit wraps each request body with http.MaxBytesReader. Reads past
// the limit fail with *http.MaxBytesError, which the JSON decoder maps to
// a 413 response. A non-positive limit falls back to DefaultMaxBodyBytes.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

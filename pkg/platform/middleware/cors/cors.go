// Package cors implements cross-origin resource sharing for browser
// clients, including preflight handling.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config controls which origins may call the API from a browser.
type Config struct {
	// Origins is the allow-list of origins. A single "*" entry allows any
	// origin; with AllowCredentials set, the request origin is echoed back
	// instead of the literal "*" as required by the fetch spec.
	Origins []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests.
	AllowCredentials bool

	// MaxAge is how long browsers may cache preflight results.
	MaxAge time.Duration
}

const allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

// Middleware answers preflight OPTIONS requests directly and decorates
// other responses with the CORS headers when the Origin is allowed.
// Requests without an Origin header pass through untouched. Responses
// always carry Vary: Origin so caches key on the origin.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.Origins))
	for _, o := range cfg.Origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
			continue
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	originAllowed := func(origin string) bool {
		if allowAll {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")

			if !originAllowed(origin) {
				if isPreflight(r) {
					http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := origin
			if allowAll && !cfg.AllowCredentials {
				allowOrigin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if isPreflight(r) {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				}
				w.Header().Set("Access-Control-Max-Age", maxAgeSeconds)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

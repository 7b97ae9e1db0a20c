// Package hosts validates the Host header against a configured allow-list,
// guarding against host header injection.
package hosts

import (
	"net"
	"net/http"
	"strings"

	domainerrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/httputil"
	pstrings "meridian/pkg/platform/strings"
)

// Trusted rejects requests whose Host header does not match the allow-list
// with 400 "Invalid host header". Entries are matched case-insensitively
// after stripping any port. A leading "*." entry matches any subdomain,
// and a bare "*" (or an empty list) disables validation.
func Trusted(allowed []string) func(http.Handler) http.Handler {
	patterns := pstrings.DedupeAndTrimLower(allowed)
	allowAll := len(patterns) == 0
	for _, p := range patterns {
		if p == "*" {
			allowAll = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll || hostAllowed(r.Host, patterns) {
				next.ServeHTTP(w, r)
				return
			}

			httputil.WriteError(w, domainerrors.New(
				domainerrors.CodeBadRequest, "Invalid host header"))
		})
	}
}

func hostAllowed(host string, patterns []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, p := range patterns {
		if host == p {
			return true
		}
		if strings.HasPrefix(p, "*.") && strings.HasSuffix(host, p[1:]) {
			return true
		}
	}
	return false
}

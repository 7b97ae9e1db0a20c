// Package auth provides bearer token authentication and role-based
// authorization middleware.
package auth

import (
	"context"
	"net/http"
	"strings"

	domainerrors "meridian/pkg/domain-errors"
	"meridian/pkg/domain"
	"meridian/pkg/platform/httputil"
)

// Principal is the authenticated identity extracted from a verified
// access token.
type Principal struct {
	UserID domain.UserID
	Email  string
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// TokenVerifier validates a raw bearer token and returns the principal it
// encodes.
type TokenVerifier interface {
	Verify(raw string) (Principal, error)
}

// VerifierFunc adapts a function to the TokenVerifier interface.
type VerifierFunc func(raw string) (Principal, error)

func (f VerifierFunc) Verify(raw string) (Principal, error) { return f(raw) }

type principalKey struct{}

// WithPrincipal returns a context carrying the principal. Exposed for
// handler tests.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequireAuth rejects requests without a valid bearer token. On success
// the principal is stored in the request context for downstream handlers.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}

			principal, err := verifier.Verify(raw)
			if err != nil {
				unauthorized(w, "Could not validate credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects authenticated requests whose principal lacks the
// given role with 403 "Not enough permissions". It must be mounted inside
// RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}
			if principal.Role != role {
				httputil.WriteError(w, domainerrors.New(
					domainerrors.CodeForbidden, "Not enough permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, detail))
}

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/pkg/domain"
)

var testPrincipal = Principal{
	UserID: domain.NewUserID(),
	Email:  "alice@example.com",
	Role:   "admin",
}

func staticVerifier(valid string) TokenVerifier {
	return VerifierFunc(func(raw string) (Principal, error) {
		if raw == valid {
			return testPrincipal, nil
		}
		return Principal{}, errors.New("token is expired")
	})
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, testPrincipal.Email, p.Email)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(staticVerifier("good-token"))(protected(t))

	t.Run("valid token passes and exposes principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Not authenticated", body["detail"])
	})

	t.Run("malformed scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer expired-token")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Could not validate credentials", body["detail"])
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "bearer good-token")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("matching role passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req = req.WithContext(WithPrincipal(req.Context(), testPrincipal))

		rec := httptest.NewRecorder()
		RequireRole("admin")(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong role is forbidden", func(t *testing.T) {
		member := Principal{UserID: domain.NewUserID(), Email: "bob@example.com", Role: "user"}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req = req.WithContext(WithPrincipal(req.Context(), member))

		rec := httptest.NewRecorder()
		RequireRole("admin")(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Not enough permissions", body["detail"])
	})

	t.Run("missing principal is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRole("admin")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPrincipalIsAdmin(t *testing.T) {
	assert.True(t, Principal{Role: "admin"}.IsAdmin())
	assert.False(t, Principal{Role: "user"}.IsAdmin())
	assert.False(t, Principal{Role: "manager"}.IsAdmin())
}

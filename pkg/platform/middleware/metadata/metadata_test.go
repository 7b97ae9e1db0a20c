package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"meridian/pkg/requestcontext"
)

func capture(cfg Config, req *http.Request) (ip, ua string) {
	handler := ClientMetadata(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return ip, ua
}

func TestClientMetadata(t *testing.T) {
	t.Run("uses peer address by default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:51234"

		ip, _ := capture(Config{}, req)
		assert.Equal(t, "203.0.113.9", ip)
	})

	t.Run("ignores forwarded header from untrusted peer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		req.Header.Set("X-Forwarded-For", "198.51.100.77")

		ip, _ := capture(Config{TrustedProxies: []string{"10.0.0.0/8"}}, req)
		assert.Equal(t, "203.0.113.9", ip)
	})

	t.Run("honors forwarded header from trusted proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:443"
		req.Header.Set("X-Forwarded-For", "198.51.100.77, 10.1.2.3")

		ip, _ := capture(Config{TrustedProxies: []string{"10.0.0.0/8"}}, req)
		assert.Equal(t, "198.51.100.77", ip)
	})

	t.Run("falls back to X-Real-IP from trusted proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:443"
		req.Header.Set("X-Real-IP", "198.51.100.88")

		ip, _ := capture(Config{TrustedProxies: []string{"10.0.0.0/8"}}, req)
		assert.Equal(t, "198.51.100.88", ip)
	})

	t.Run("rejects garbage forwarded values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:443"
		req.Header.Set("X-Forwarded-For", "not-an-ip")

		ip, _ := capture(Config{TrustedProxies: []string{"10.0.0.0/8"}}, req)
		assert.Equal(t, "10.1.2.3", ip)
	})

	t.Run("captures user agent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

		_, ua := capture(Config{}, req)
		assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", ua)
	})

	t.Run("single host trusted proxy entry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:8080"
		req.Header.Set("X-Forwarded-For", "198.51.100.5")

		ip, _ := capture(Config{TrustedProxies: []string{"192.0.2.10"}}, req)
		assert.Equal(t, "198.51.100.5", ip)
	})
}

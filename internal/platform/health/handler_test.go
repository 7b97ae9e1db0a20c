package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doGet(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleStatus(t *testing.T) {
	t.Run("no database configured", func(t *testing.T) {
		rec := doGet(t, New("test"), "/health")

		require.Equal(t, http.StatusOK, rec.Code)

		var body StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "not configured", body.Database)
		assert.Equal(t, "test", body.Environment)

		ts, err := time.Parse(time.RFC3339, body.Timestamp)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)
	})

	t.Run("database connected", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func() error { return nil })

		rec := doGet(t, h, "/health")

		var body StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "connected", body.Database)
	})

	t.Run("database down degrades status but stays 200", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func() error { return errors.New("dial tcp: connection refused") })

		rec := doGet(t, h, "/health")

		require.Equal(t, http.StatusOK, rec.Code)

		var body StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "disconnected", body.Database)
	})
}

func TestHandleLiveness(t *testing.T) {
	rec := doGet(t, New("test"), "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestHandleReadiness(t *testing.T) {
	t.Run("all checks up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func() error { return nil })
		h.RegisterCheck("redis", func() error { return nil })

		rec := doGet(t, h, "/health/ready")

		require.Equal(t, http.StatusOK, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, "up", body.Checks["database"])
		assert.Equal(t, "up", body.Checks["redis"])
	})

	t.Run("failing check returns 503", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func() error { return errors.New("pool exhausted") })

		rec := doGet(t, h, "/health/ready")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Contains(t, body.Checks["database"], "down")
	})
}

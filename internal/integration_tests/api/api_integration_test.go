// Package api exercises the fully assembled service end to end: real
// stores, real services, real tokens, and the complete middleware chain.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/audit"
	orderhandler "meridian/internal/order/handler"
	ordermodels "meridian/internal/order/models"
	orderservice "meridian/internal/order/service"
	orderstore "meridian/internal/order/store/order"
	"meridian/internal/platform/config"
	"meridian/internal/platform/health"
	ratelimitmw "meridian/internal/ratelimit/middleware"
	ratelimitservice "meridian/internal/ratelimit/service"
	"meridian/internal/ratelimit/store/window"
	"meridian/internal/server"
	"meridian/internal/token"
	userhandler "meridian/internal/user/handler"
	usermodels "meridian/internal/user/models"
	userstore "meridian/internal/user/store/user"
	userservice "meridian/internal/user/service"
	"meridian/pkg/domain"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/platform/middleware/request"
	"meridian/pkg/secrets"
)

const testPassword = "sup3r-secret"

type testAPI struct {
	router http.Handler
	users  *userstore.InMemory
	orders *orderstore.InMemory
	events *audit.Capture
}

func defaultHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		CORSOrigins:    []string{"http://localhost:3000"},
		TrustedHosts:   []string{"*"},
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

func defaultRateLimit() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:     true,
		ReadMax:     100,
		ReadWindow:  time.Minute,
		WriteMax:    20,
		WriteWindow: time.Minute,
	}
}

// newAPI assembles the whole service against in-memory backends. Each
// call gets its own stores, rate limit windows, and metrics registry.
func newAPI(t *testing.T, httpCfg config.HTTPConfig, rl config.RateLimitConfig) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	users := userstore.NewInMemory()
	orders := orderstore.NewInMemory()
	tokens := token.NewService("integration-test-key", "meridian", 30*time.Minute)
	events := audit.NewCapture()

	userSvc := userservice.New(users, tokens,
		userservice.WithLogger(logger),
		userservice.WithAuditPublisher(events),
		userservice.WithBcryptCost(4),
	)
	orderSvc := orderservice.New(orders,
		orderservice.WithLogger(logger),
		orderservice.WithAuditPublisher(events),
	)

	var limiter ratelimitmw.Checker
	if rl.Enabled {
		limiter = ratelimitservice.New(window.NewMemoryStore(),
			ratelimitservice.PoliciesFromConfig(rl),
			ratelimitservice.WithLogger(logger),
		)
	}

	router := server.New(httpCfg, server.Deps{
		Logger:   logger,
		Health:   health.New("test"),
		Users:    userhandler.New(userSvc, logger),
		Orders:   orderhandler.New(orderSvc, logger),
		Verifier: token.PrincipalVerifier(tokens),
		Limiter:  limiter,
		Requests: request.NewMetrics(reg),
		Gatherer: reg,
	})

	return &testAPI{router: router, users: users, orders: orders, events: events}
}

func (a *testAPI) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, email, username string) usermodels.UserResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"email":    email,
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp usermodels.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (a *testAPI) login(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp usermodels.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// seedAdmin plants an admin account directly in the store and returns a
// token for it, mirroring an account provisioned before the test run.
func (a *testAPI) seedAdmin(t *testing.T) string {
	t.Helper()
	hashed, err := secrets.Hash(testPassword, 4)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, a.users.Create(context.Background(), &usermodels.User{
		ID:             domain.NewUserID(),
		Email:          "admin@example.com",
		Username:       "admin",
		HashedPassword: hashed,
		Role:           usermodels.RoleAdmin,
		IsActive:       true,
		IsVerified:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
	return a.login(t, "admin@example.com")
}

func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Detail
}

func TestUserJourneyAcrossTheStack(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	created := api.register(t, "maria@example.com", "maria")
	assert.Equal(t, usermodels.RoleUser, created.Role)
	assert.True(t, created.IsActive)

	tok := api.login(t, "maria@example.com")

	rec := api.do(t, http.MethodGet, "/api/v1/users/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me usermodels.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "maria@example.com", me.Email)
	assert.NotNil(t, me.LastLoginAt)

	// The chain decorates every response.
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))

	rec = api.do(t, http.MethodPut, "/api/v1/users/me", tok, map[string]string{
		"bio": "Collects postcards.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Collects postcards.", me.Bio)

	rec = api.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	registered := api.events.ByType(audit.EventUserRegistered)
	require.Len(t, registered, 1)
	assert.Equal(t, "maria@example.com", registered[0].Data["email"])
}

func TestOrderLifecycleAcrossTheStack(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	api.register(t, "carlos@example.com", "carlos")
	customer := api.login(t, "carlos@example.com")
	admin := api.seedAdmin(t)

	rec := api.do(t, http.MethodPost, "/api/v1/orders", customer, map[string]any{
		"subtotal_cents":   4500,
		"tax_cents":        360,
		"shipping_cents":   500,
		"shipping_address": "221B Baker Street, London",
		"payment_method":   "card",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order ordermodels.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, ordermodels.StatusPending, order.Status)
	assert.Equal(t, int64(5360), order.TotalCents)
	orderPath := "/api/v1/orders/" + order.ID

	// Status changes are an admin concern.
	rec = api.do(t, http.MethodPut, orderPath+"/status", customer, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPut, orderPath+"/status", admin, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPut, orderPath+"/payment", admin, map[string]string{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPut, orderPath+"/status", admin, map[string]string{
		"status":          "shipped",
		"tracking_number": "1Z999AA10123456784",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.True(t, order.IsShipped)
	assert.Equal(t, "1Z999AA10123456784", order.TrackingNumber)
	assert.NotNil(t, order.ShippedAt)

	// Too late for the customer to back out.
	rec = api.do(t, http.MethodPost, orderPath+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order can no longer be cancelled", errorDetail(t, rec))

	rec = api.do(t, http.MethodPut, orderPath+"/status", admin, map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.NotNil(t, order.DeliveredAt)

	rec = api.do(t, http.MethodGet, "/api/v1/orders?status=delivered", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page ordermodels.OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = api.do(t, http.MethodDelete, orderPath, admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, orderPath, customer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", errorDetail(t, rec))

	assert.Len(t, api.events.ByType(audit.EventOrderCreated), 1)
	assert.Len(t, api.events.ByType(audit.EventOrderStatusChanged), 3)
	assert.Len(t, api.events.ByType(audit.EventOrderDeleted), 1)
}

func TestPermissionBoundaries(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	api.register(t, "ana@example.com", "ana")
	api.register(t, "ben@example.com", "ben")
	ana := api.login(t, "ana@example.com")
	ben := api.login(t, "ben@example.com")
	admin := api.seedAdmin(t)

	rec := api.do(t, http.MethodGet, "/api/v1/users", ana, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions", errorDetail(t, rec))

	rec = api.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/orders", ana, map[string]any{"subtotal_cents": 1200})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order ordermodels.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = api.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, ben, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/orders/number/"+order.OrderNumber, ben, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", errorDetail(t, rec))
}

func TestRateLimitProtectsWrites(t *testing.T) {
	rl := defaultRateLimit()
	rl.WriteMax = 3
	api := newAPI(t, defaultHTTPConfig(), rl)

	login := map[string]string{"email": "ghost@example.com", "password": "wrong-password"}
	for i, wantRemaining := range []string{"2", "1", "0"} {
		rec := api.do(t, http.MethodPost, "/api/v1/users/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, wantRemaining, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := api.do(t, http.MethodPost, "/api/v1/users/login", "", login)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var rejected ratelimitmw.RejectedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Equal(t, ratelimitmw.RejectedDetail, rejected.Detail)
	assert.Equal(t, 60, rejected.RetryAfter)

	// Reads budget independently of writes.
	rec = api.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))

	// Probes stay reachable during an outage investigation.
	rec = api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	rec := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status health.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not configured", status.Database)
	assert.Equal(t, "test", status.Environment)
	_, err := time.Parse(time.RFC3339, status.Timestamp)
	assert.NoError(t, err)

	rec = api.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")

	rec = api.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meridian_http_requests_in_flight")
	assert.Contains(t, rec.Body.String(), "meridian_http_requests_total")
}

func TestOversizedBodyRejected(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	huge := map[string]string{
		"email":    "big@example.com",
		"username": "big",
		"password": testPassword,
		"bio":      strings.Repeat("x", 2<<20),
	}
	rec := api.do(t, http.MethodPost, "/api/v1/users/register", "", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", errorDetail(t, rec))
}

func TestMalformedJSONThroughTheStack(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	rec := api.do(t, http.MethodPost, "/api/v1/users/register", "", "{not-json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid request body", errorDetail(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	api := newAPI(t, defaultHTTPConfig(), defaultRateLimit())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/users/register", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrustedHostEnforcement(t *testing.T) {
	cfg := defaultHTTPConfig()
	cfg.TrustedHosts = []string{"api.example.com"}
	api := newAPI(t, cfg, defaultRateLimit())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "evil.example.com"
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid host header", errorDetail(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "api.example.com"
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

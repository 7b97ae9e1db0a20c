package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPassword is used for every account the suite registers.
const DefaultPassword = "e2e-S3cret-pass!"

// SeededAdminEmail is the admin account created by the demo seeder. The
// target deployment must run with MERIDIAN_SEED_DEMO_DATA=true for the
// admin scenarios to pass.
const SeededAdminEmail = "john.doe@example.com"

// SeededAdminPassword matches seed.DemoPassword.
const SeededAdminPassword = "Password123!"

// TestContext carries state between scenario steps: the last response,
// issued tokens, and the identifiers of entities created so far.
type TestContext struct {
	BaseURL    string
	HTTPClient *http.Client

	LastResponse     *http.Response
	LastResponseBody []byte

	// nonce makes registered emails unique per scenario so the suite
	// can be re-run against a long-lived deployment.
	nonce string

	UserEmail   string
	UserID      string
	AccessToken string
	AdminToken  string
	OrderID     string

	// RateLimited holds the most recent 429 response, kept separately
	// because assertion steps run after further requests may have fired.
	RateLimitedStatus int
	RateLimitedBody   []byte
	RateLimitedHeader http.Header
}

// NewTestContext builds a context targeting MERIDIAN_E2E_BASE_URL.
func NewTestContext() *TestContext {
	baseURL := os.Getenv("MERIDIAN_E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		nonce: uuid.NewString()[:8],
	}
}

// Reset clears per-scenario state and issues a fresh nonce. The base
// URL and HTTP client survive so step closures can hold one context for
// the whole suite.
func (tc *TestContext) Reset() {
	tc.LastResponse = nil
	tc.LastResponseBody = nil
	tc.nonce = uuid.NewString()[:8]
	tc.UserEmail = ""
	tc.UserID = ""
	tc.AccessToken = ""
	tc.AdminToken = ""
	tc.OrderID = ""
	tc.RateLimitedStatus = 0
	tc.RateLimitedBody = nil
	tc.RateLimitedHeader = nil
}

// UniqueEmail derives a per-scenario email from a prefix.
func (tc *TestContext) UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@e2e.test", prefix, tc.nonce)
}

// UniqueUsername derives a per-scenario username from a prefix.
func (tc *TestContext) UniqueUsername(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, tc.nonce)
}

// Do issues a request with an optional JSON body and bearer token, and
// records the response for assertion steps.
func (tc *TestContext) Do(method, path string, body any, token string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		tc.RateLimitedStatus = resp.StatusCode
		tc.RateLimitedBody = tc.LastResponseBody
		tc.RateLimitedHeader = resp.Header.Clone()
	}
	return nil
}

// POST issues an unauthenticated POST.
func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, "")
}

// GET issues an unauthenticated GET.
func (tc *TestContext) GET(path string) error {
	return tc.Do(http.MethodGet, path, nil, "")
}

// ResponseField extracts a top-level field from the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in response: %s", field, tc.LastResponseBody)
	}
	return value, nil
}

// ResponseStringField extracts a top-level string field.
func (tc *TestContext) ResponseStringField(field string) (string, error) {
	v, err := tc.ResponseField(field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, not a string", field, v)
	}
	return s, nil
}

// ResponseContains reports whether the last body contains text, either
// as a substring or as a top-level JSON key.
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

// Accessors used by the step subpackages.

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte { return tc.LastResponseBody }

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetUserEmail() string        { return tc.UserEmail }
func (tc *TestContext) SetUserEmail(email string)   { tc.UserEmail = email }
func (tc *TestContext) GetUserID() string           { return tc.UserID }
func (tc *TestContext) SetUserID(id string)         { tc.UserID = id }
func (tc *TestContext) GetAccessToken() string      { return tc.AccessToken }
func (tc *TestContext) SetAccessToken(token string) { tc.AccessToken = token }
func (tc *TestContext) GetAdminToken() string       { return tc.AdminToken }
func (tc *TestContext) SetAdminToken(token string)  { tc.AdminToken = token }
func (tc *TestContext) GetOrderID() string          { return tc.OrderID }
func (tc *TestContext) SetOrderID(id string)        { tc.OrderID = id }

func (tc *TestContext) GetRateLimitedStatus() int  { return tc.RateLimitedStatus }
func (tc *TestContext) GetRateLimitedBody() []byte { return tc.RateLimitedBody }

func (tc *TestContext) GetRateLimitedHeader(name string) string {
	if tc.RateLimitedHeader == nil {
		return ""
	}
	return tc.RateLimitedHeader.Get(name)
}

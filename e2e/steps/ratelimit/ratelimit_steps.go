// Package ratelimit drives enough traffic at the API to trip the write
// policy and then checks the shape of the 429 response.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	Do(method, path string, body any, token string) error
	GetLastResponseStatus() int
	GetRateLimitedStatus() int
	GetRateLimitedBody() []byte
	GetRateLimitedHeader(name string) string
	UniqueEmail(prefix string) string
}

// RegisterSteps wires the rate limiting step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rateLimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) failed login attempts$`, steps.sendFailedLogins)
	ctx.Step(`^at least one response should be rate limited$`, steps.atLeastOneRateLimited)
	ctx.Step(`^the rate limited response should include a retry hint$`, steps.rateLimitedIncludesRetryHint)
	ctx.Step(`^the rate limited response should carry the security headers$`, steps.rateLimitedCarriesSecurityHeaders)
	ctx.Step(`^I wait for the rate limit window to reset$`, steps.waitForWindowReset)
}

type rateLimitSteps struct {
	tc TestContext
}

// sendFailedLogins burns write-policy budget with guaranteed-401 logins.
// The count in the feature file exceeds the default write cap so at
// least the tail of the burst is rejected regardless of how much budget
// earlier scenarios consumed.
func (s *rateLimitSteps) sendFailedLogins(ctx context.Context, count int) error {
	body := map[string]any{
		"email":    s.tc.UniqueEmail("limit"),
		"password": "definitely-wrong",
	}
	for i := 0; i < count; i++ {
		if err := s.tc.Do(http.MethodPost, "/api/v1/users/login", body, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *rateLimitSteps) atLeastOneRateLimited(ctx context.Context) error {
	if s.tc.GetRateLimitedStatus() != http.StatusTooManyRequests {
		return fmt.Errorf("no request was rate limited; last status %d",
			s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *rateLimitSteps) rateLimitedIncludesRetryHint(ctx context.Context) error {
	if got := s.tc.GetRateLimitedHeader("Retry-After"); got == "" {
		return fmt.Errorf("429 response has no Retry-After header")
	}

	var payload struct {
		Detail     string `json:"detail"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.Unmarshal(s.tc.GetRateLimitedBody(), &payload); err != nil {
		return fmt.Errorf("unmarshal 429 body: %w", err)
	}
	if payload.RetryAfter <= 0 {
		return fmt.Errorf("429 body retry_after is %d, expected > 0", payload.RetryAfter)
	}
	if payload.Detail == "" {
		return fmt.Errorf("429 body has no detail message")
	}
	return nil
}

// waitForWindowReset sleeps out the Retry-After hint so scenarios that
// run after this feature start with a full write budget.
func (s *rateLimitSteps) waitForWindowReset(ctx context.Context) error {
	retryAfter, err := strconv.Atoi(s.tc.GetRateLimitedHeader("Retry-After"))
	if err != nil || retryAfter <= 0 {
		return fmt.Errorf("cannot parse Retry-After %q", s.tc.GetRateLimitedHeader("Retry-After"))
	}

	select {
	case <-time.After(time.Duration(retryAfter+1) * time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Security headers must be attached before rate limiting short-circuits.
func (s *rateLimitSteps) rateLimitedCarriesSecurityHeaders(ctx context.Context) error {
	if got := s.tc.GetRateLimitedHeader("X-Content-Type-Options"); got != "nosniff" {
		return fmt.Errorf("429 X-Content-Type-Options is %q, expected nosniff", got)
	}
	if got := s.tc.GetRateLimitedHeader("X-Frame-Options"); got != "DENY" {
		return fmt.Errorf("429 X-Frame-Options is %q, expected DENY", got)
	}
	return nil
}

// Package common holds the request and assertion steps shared by every
// feature file.
package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	GET(path string) error
	Do(method, path string, body any, token string) error
	ResponseField(field string) (any, error)
	ResponseContains(text string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps wires the shared step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I GET "([^"]*)" without authorization$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.responseHeaderShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/health"); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("health check returned %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s",
			expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, text string) error {
	if !s.tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain %q: %s", text, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprintf("%v", value); got != expected {
		return fmt.Errorf("field %q is %q, expected %q", field, got, expected)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBe(ctx context.Context, name, expected string) error {
	if got := s.tc.GetLastResponseHeader(name); got != expected {
		return fmt.Errorf("header %q is %q, expected %q", name, got, expected)
	}
	return nil
}

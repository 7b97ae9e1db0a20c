// Package orders covers order placement, lookup, and cancellation.
package orders

import (
	"context"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	Do(method, path string, body any, token string) error
	ResponseStringField(field string) (string, error)
	GetLastResponseStatus() int
	GetAccessToken() string
	GetOrderID() string
	SetOrderID(id string)
}

// RegisterSteps wires the order step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &orderSteps{tc: tc}

	ctx.Step(`^I create an order of (\d+) cents$`, steps.createOrder)
	ctx.Step(`^I fetch the created order$`, steps.fetchCreatedOrder)
	ctx.Step(`^I cancel the created order$`, steps.cancelCreatedOrder)
}

type orderSteps struct {
	tc TestContext
}

func (s *orderSteps) createOrder(ctx context.Context, subtotalCents int) error {
	body := map[string]any{
		"subtotal_cents":   subtotalCents,
		"currency":         "USD",
		"shipping_address": "1 E2E Street",
		"payment_method":   "credit_card",
	}
	if err := s.tc.Do(http.MethodPost, "/api/v1/orders", body, s.tc.GetAccessToken()); err != nil {
		return err
	}

	if s.tc.GetLastResponseStatus() == http.StatusCreated {
		id, err := s.tc.ResponseStringField("id")
		if err != nil {
			return err
		}
		s.tc.SetOrderID(id)
	}
	return nil
}

func (s *orderSteps) fetchCreatedOrder(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/api/v1/orders/"+s.tc.GetOrderID(), nil, s.tc.GetAccessToken())
}

func (s *orderSteps) cancelCreatedOrder(ctx context.Context) error {
	return s.tc.Do(http.MethodPost, "/api/v1/orders/"+s.tc.GetOrderID()+"/cancel", nil, s.tc.GetAccessToken())
}

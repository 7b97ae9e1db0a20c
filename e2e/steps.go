package e2e

import (
	"github.com/cucumber/godog"

	"meridian/e2e/steps/common"
	"meridian/e2e/steps/orders"
	"meridian/e2e/steps/ratelimit"
	"meridian/e2e/steps/users"
)

// RegisterSteps wires every step package against the shared context.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(sc, tc)
	users.RegisterSteps(sc, tc, users.Credentials{
		Password:      DefaultPassword,
		AdminEmail:    SeededAdminEmail,
		AdminPassword: SeededAdminPassword,
	})
	orders.RegisterSteps(sc, tc)
	ratelimit.RegisterSteps(sc, tc)
}

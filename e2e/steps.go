//go:build e2e

package e2e

import (
	"github.com/cucumber/godog"

	"github.com/jasonachkar/secure-api-gateway-sub001/e2e/steps/auth"
	"github.com/jasonachkar/secure-api-gateway-sub001/e2e/steps/authz"
	"github.com/jasonachkar/secure-api-gateway-sub001/e2e/steps/common"
	"github.com/jasonachkar/secure-api-gateway-sub001/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
	authz.RegisterSteps(ctx, tc)
}

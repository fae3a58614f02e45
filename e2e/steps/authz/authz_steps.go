package authz

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GetAccessToken() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers permission check step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authzSteps{tc: tc}

	ctx.Step(`^I (GET|POST) "([^"]*)" with my access token$`, steps.requestWithToken)
	ctx.Step(`^I should be denied for a missing permission$`, steps.shouldBeDenied)
}

type authzSteps struct {
	tc TestContext
}

func (s *authzSteps) requestWithToken(ctx context.Context, method, path string) error {
	var body any
	if method == http.MethodPost {
		body = map[string]any{"title": "quarterly"}
	}
	return s.tc.Do(method, path, body, map[string]string{
		"Authorization": "Bearer " + s.tc.GetAccessToken(),
	})
}

func (s *authzSteps) shouldBeDenied(ctx context.Context) error {
	if status := s.tc.GetLastResponseStatus(); status != http.StatusForbidden {
		return fmt.Errorf("expected 403 but got %d: %s", status, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

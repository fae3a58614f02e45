package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// maxExhaustAttempts bounds the loop that drains a budget.
const maxExhaustAttempts = 1000

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetAccessToken() string
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I exhaust the login rate limit$`, steps.exhaustLoginLimit)
	ctx.Step(`^I make (\d+) authenticated requests to "([^"]*)"$`, steps.makeAuthenticatedRequests)
	ctx.Step(`^all (\d+) requests should succeed with status (\d+)$`, steps.allRequestsShouldSucceedWithStatus)
	ctx.Step(`^the response should carry rate limit headers$`, steps.responseShouldCarryRateLimitHeaders)
	ctx.Step(`^the remaining budget should have decreased$`, steps.remainingShouldHaveDecreased)
	ctx.Step(`^the response should indicate lockout$`, steps.responseShouldIndicateLockout)
}

type ratelimitSteps struct {
	tc TestContext
	// State for tracking across steps
	requestResults []int
	lastRemaining  int
}

// exhaustLoginLimit sends failing logins until the auth scope answers 429.
func (s *ratelimitSteps) exhaustLoginLimit(ctx context.Context) error {
	body := map[string]any{"username": "ratelimit-probe", "password": "not-the-password"}
	for i := 0; i < maxExhaustAttempts; i++ {
		if err := s.tc.POSTWithHeaders("/auth/login", body, nil); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == http.StatusTooManyRequests {
			return nil
		}
	}
	return fmt.Errorf("login limit not reached after %d attempts", maxExhaustAttempts)
}

func (s *ratelimitSteps) makeAuthenticatedRequests(ctx context.Context, count int, path string) error {
	s.requestResults = make([]int, 0, count)
	headers := map[string]string{"Authorization": "Bearer " + s.tc.GetAccessToken()}
	for i := 0; i < count; i++ {
		if err := s.tc.GET(path, headers); err != nil {
			return err
		}
		s.requestResults = append(s.requestResults, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) allRequestsShouldSucceedWithStatus(ctx context.Context, count, expectedStatus int) error {
	if len(s.requestResults) < count {
		return fmt.Errorf("only %d requests recorded, want %d", len(s.requestResults), count)
	}
	for i := 0; i < count; i++ {
		if s.requestResults[i] != expectedStatus {
			return fmt.Errorf("request %d returned %d, want %d", i+1, s.requestResults[i], expectedStatus)
		}
	}
	return nil
}

func (s *ratelimitSteps) responseShouldCarryRateLimitHeaders(ctx context.Context) error {
	for _, h := range []string{"RateLimit-Limit", "RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.GetLastResponseHeader(h) == "" {
			return fmt.Errorf("missing %s header", h)
		}
	}
	remaining, err := strconv.Atoi(s.tc.GetLastResponseHeader("RateLimit-Remaining"))
	if err != nil {
		return fmt.Errorf("RateLimit-Remaining not numeric: %w", err)
	}
	s.lastRemaining = remaining
	return nil
}

func (s *ratelimitSteps) remainingShouldHaveDecreased(ctx context.Context) error {
	before := s.lastRemaining
	if err := s.responseShouldCarryRateLimitHeaders(ctx); err != nil {
		return err
	}
	if s.lastRemaining >= before {
		return fmt.Errorf("RateLimit-Remaining went from %d to %d", before, s.lastRemaining)
	}
	return nil
}

func (s *ratelimitSteps) responseShouldIndicateLockout(ctx context.Context) error {
	if status := s.tc.GetLastResponseStatus(); status != http.StatusLocked {
		return fmt.Errorf("expected 423 but got %d: %s", status, string(s.tc.GetLastResponseBody()))
	}
	retry, err := strconv.Atoi(s.tc.GetLastResponseHeader("Retry-After"))
	if err != nil || retry < 1 {
		return fmt.Errorf("lockout response has no usable Retry-After (%q)", s.tc.GetLastResponseHeader("Retry-After"))
	}
	return nil
}

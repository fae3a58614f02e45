package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/session/refresh"
	logoutPath  = "/auth/session/logout"
	cookieName  = "gw_session"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	ResponseCookie(name string) *http.Cookie
	CaptureSession()
	GetDemoPassword() string
	GetAccessToken() string
	SetAccessToken(token string)
	GetSessionToken() string
	GetPreviousSessionToken() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers login, session and logout step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	// Login
	ctx.Step(`^I log in as "([^"]*)" with the demo password$`, steps.loginWithDemoPassword)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.loginWithPassword)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)" (\d+) times$`, steps.loginRepeatedly)
	ctx.Step(`^I am logged in as "([^"]*)"$`, steps.loggedInAs)

	// Sessions
	ctx.Step(`^I refresh my session$`, steps.refreshSession)
	ctx.Step(`^I refresh without a session cookie$`, steps.refreshWithoutCookie)
	ctx.Step(`^I replay the previous session token$`, steps.replayPreviousSession)
	ctx.Step(`^I log out$`, steps.logout)
	ctx.Step(`^I request my profile$`, steps.requestProfile)

	// Assertions
	ctx.Step(`^the response should set the session cookie$`, steps.responseShouldSetSessionCookie)
	ctx.Step(`^the response should not leak the session token$`, steps.responseShouldNotLeakSession)
	ctx.Step(`^the session cookie should have changed$`, steps.sessionCookieShouldHaveChanged)
	ctx.Step(`^the session cookie should be cleared$`, steps.sessionCookieShouldBeCleared)
	ctx.Step(`^I remember the error response$`, steps.rememberErrorResponse)
	ctx.Step(`^the error response should match the remembered one$`, steps.errorResponseShouldMatch)
	ctx.Step(`^my profile should list the role "([^"]*)"$`, steps.profileShouldListRole)
}

type authSteps struct {
	tc              TestContext
	rememberedError string
	rememberedDesc  string
}

func (s *authSteps) login(username, password string) error {
	body := map[string]any{"username": username, "password": password}
	if err := s.tc.POSTWithHeaders(loginPath, body, nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusOK {
		return nil
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token.(string))
	s.tc.CaptureSession()
	return nil
}

func (s *authSteps) loginWithDemoPassword(ctx context.Context, username string) error {
	return s.login(username, s.tc.GetDemoPassword())
}

func (s *authSteps) loginWithPassword(ctx context.Context, username, password string) error {
	return s.login(username, password)
}

func (s *authSteps) loginRepeatedly(ctx context.Context, username, password string, times int) error {
	for i := 0; i < times; i++ {
		if err := s.login(username, password); err != nil {
			return err
		}
	}
	return nil
}

func (s *authSteps) loggedInAs(ctx context.Context, username string) error {
	if err := s.loginWithDemoPassword(ctx, username); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("login as %s returned %d: %s", username, status, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *authSteps) sendSession(path, token string) error {
	var headers map[string]string
	if token != "" {
		headers = map[string]string{"Cookie": cookieName + "=" + token}
	}
	return s.tc.POSTWithHeaders(path, nil, headers)
}

func (s *authSteps) refreshSession(ctx context.Context) error {
	if err := s.sendSession(refreshPath, s.tc.GetSessionToken()); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == http.StatusOK {
		token, err := s.tc.GetResponseField("access_token")
		if err != nil {
			return err
		}
		s.tc.SetAccessToken(token.(string))
		s.tc.CaptureSession()
	}
	return nil
}

func (s *authSteps) refreshWithoutCookie(ctx context.Context) error {
	return s.sendSession(refreshPath, "")
}

func (s *authSteps) replayPreviousSession(ctx context.Context) error {
	prev := s.tc.GetPreviousSessionToken()
	if prev == "" {
		return fmt.Errorf("no previous session token recorded")
	}
	return s.sendSession(refreshPath, prev)
}

func (s *authSteps) logout(ctx context.Context) error {
	return s.sendSession(logoutPath, s.tc.GetSessionToken())
}

func (s *authSteps) requestProfile(ctx context.Context) error {
	return s.tc.GET("/me", map[string]string{"Authorization": "Bearer " + s.tc.GetAccessToken()})
}

func (s *authSteps) responseShouldSetSessionCookie(ctx context.Context) error {
	c := s.tc.ResponseCookie(cookieName)
	if c == nil || c.Value == "" {
		return fmt.Errorf("no %s cookie in response", cookieName)
	}
	if !c.HttpOnly {
		return fmt.Errorf("session cookie is not HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		return fmt.Errorf("session cookie SameSite = %v, want Strict", c.SameSite)
	}
	if c.Path != "/auth/session" {
		return fmt.Errorf("session cookie path = %q, want /auth/session", c.Path)
	}
	return nil
}

func (s *authSteps) responseShouldNotLeakSession(ctx context.Context) error {
	token := s.tc.GetSessionToken()
	if token != "" && strings.Contains(string(s.tc.GetLastResponseBody()), token) {
		return fmt.Errorf("session token present in response body")
	}
	return nil
}

func (s *authSteps) sessionCookieShouldHaveChanged(ctx context.Context) error {
	if s.tc.GetSessionToken() == "" || s.tc.GetSessionToken() == s.tc.GetPreviousSessionToken() {
		return fmt.Errorf("session token was not rotated")
	}
	return nil
}

func (s *authSteps) sessionCookieShouldBeCleared(ctx context.Context) error {
	c := s.tc.ResponseCookie(cookieName)
	if c == nil {
		return fmt.Errorf("no %s cookie in response", cookieName)
	}
	if c.Value != "" || c.MaxAge >= 0 {
		return fmt.Errorf("session cookie not cleared: value=%q max-age=%d", c.Value, c.MaxAge)
	}
	return nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (s *authSteps) decodeError() (errorBody, error) {
	var body errorBody
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return body, fmt.Errorf("failed to parse error response: %w", err)
	}
	return body, nil
}

func (s *authSteps) rememberErrorResponse(ctx context.Context) error {
	body, err := s.decodeError()
	if err != nil {
		return err
	}
	s.rememberedError, s.rememberedDesc = body.Error, body.ErrorDescription
	return nil
}

func (s *authSteps) errorResponseShouldMatch(ctx context.Context) error {
	body, err := s.decodeError()
	if err != nil {
		return err
	}
	if body.Error != s.rememberedError || body.ErrorDescription != s.rememberedDesc {
		return fmt.Errorf("error response differs: got %q/%q, remembered %q/%q",
			body.Error, body.ErrorDescription, s.rememberedError, s.rememberedDesc)
	}
	return nil
}

func (s *authSteps) profileShouldListRole(ctx context.Context, role string) error {
	var profile struct {
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &profile); err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	for _, r := range profile.Roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("profile roles %v do not include %s", profile.Roles, role)
}

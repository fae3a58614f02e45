//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"
)

// SessionCookieName is the cookie the gateway stores the session token in.
const SessionCookieName = "gw_session"

// TestContext holds state between test steps. Each scenario gets its own
// client address so rate limit and lockout counters never leak between
// scenarios; the gateway under test must trust the runner as a proxy.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	DemoPassword     string
	ClientIP         string
	LastResponse     *http.Response
	LastResponseBody []byte
	AccessToken      string
	SessionToken     string
	PreviousSession  string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		DemoPassword: os.Getenv("DEMO_PASSWORD"),
		ClientIP:     randomClientIP(),
	}
}

// randomClientIP picks an address from TEST-NET-2 (198.51.100.0/24) and
// TEST-NET-3 (203.0.113.0/24).
func randomClientIP() string {
	nets := []string{"198.51.100", "203.0.113"}
	return fmt.Sprintf("%s.%d", nets[rand.IntN(len(nets))], 1+rand.IntN(254))
}

// RotateClientIP moves the scenario to a fresh origin.
func (tc *TestContext) RotateClientIP() {
	prev := tc.ClientIP
	for tc.ClientIP == prev {
		tc.ClientIP = randomClientIP()
	}
}

// Do sends a request from the scenario's client address and stores the response.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", tc.ClientIP)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

// POSTWithHeaders makes a POST request with optional headers
func (tc *TestContext) POSTWithHeaders(path string, body any, headers map[string]string) error {
	return tc.Do(http.MethodPost, path, body, headers)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
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

// ResponseCookie returns the named cookie set by the last response, or nil.
func (tc *TestContext) ResponseCookie(name string) *http.Cookie {
	if tc.LastResponse == nil {
		return nil
	}
	for _, c := range tc.LastResponse.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CaptureSession records the session cookie of the last response, keeping
// the one it replaces for replay checks.
func (tc *TestContext) CaptureSession() {
	c := tc.ResponseCookie(SessionCookieName)
	if c == nil {
		return
	}
	tc.PreviousSession = tc.SessionToken
	tc.SessionToken = c.Value
}

// Getter methods for step package interfaces

func (tc *TestContext) GetDemoPassword() string { return tc.DemoPassword }

func (tc *TestContext) GetAccessToken() string { return tc.AccessToken }

func (tc *TestContext) SetAccessToken(token string) { tc.AccessToken = token }

func (tc *TestContext) GetSessionToken() string { return tc.SessionToken }

func (tc *TestContext) GetPreviousSessionToken() string { return tc.PreviousSession }

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

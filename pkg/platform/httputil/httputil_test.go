package httputil

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

func requestWithID(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}

func TestErrorWriter(t *testing.T) {
	t.Run("operational errors log at warn, others at error", func(t *testing.T) {
		var buf bytes.Buffer
		ew := NewErrorWriter(slog.New(slog.NewTextHandler(&buf, nil)), false)

		ew.Write(httptest.NewRecorder(), requestWithID("req-7"), dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials"))
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "request_id=req-7")

		buf.Reset()
		ew.Write(httptest.NewRecorder(), requestWithID("req-8"), errors.New("boom"))
		assert.Contains(t, buf.String(), "level=ERROR")
	})

	t.Run("every error carries the request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewErrorWriter(nil, false).Write(w, requestWithID("req-42"), dErrors.New(dErrors.CodeTokenInvalid, "invalid token"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "token_invalid", resp.Error)
		assert.Equal(t, "req-42", resp.RequestID)
	})

	t.Run("internal errors hide their cause", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewErrorWriter(nil, true).Write(w, requestWithID("req-1"), errors.New("dial tcp 10.0.0.5:6379: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
		resp := decodeBody(t, w)
		assert.Equal(t, "internal_error", resp.Error)
		assert.Empty(t, resp.ErrorDescription)
	})

	t.Run("retryable errors set Retry-After", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.NewRetryable(dErrors.CodeRateLimited, "too many requests", 1500*time.Millisecond)
		NewErrorWriter(nil, false).Write(w, requestWithID("r"), err)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Equal(t, 2, decodeBody(t, w).RetryAfter)
	})

	t.Run("lockout maps to 423", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.NewRetryable(dErrors.CodeAccountLocked, "account temporarily locked", time.Minute)
		NewErrorWriter(nil, false).Write(w, requestWithID("r"), err)

		assert.Equal(t, http.StatusLocked, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
	})

	t.Run("detail rendered only in diagnostics mode", func(t *testing.T) {
		err := &dErrors.Error{Code: dErrors.CodeForbidden, Message: "forbidden", Detail: "missing permission: write:reports"}

		w := httptest.NewRecorder()
		NewErrorWriter(nil, false).Write(w, requestWithID("r"), err)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, decodeBody(t, w).Detail)

		w = httptest.NewRecorder()
		NewErrorWriter(nil, true).Write(w, requestWithID("r"), err)
		assert.Equal(t, "missing permission: write:reports", decodeBody(t, w).Detail)
	})

	t.Run("reason never reaches the client", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.NewWithReason(dErrors.CodeTokenInvalid, "invalid token", "token_reuse_detected")
		NewErrorWriter(nil, true).Write(w, requestWithID("r"), err)

		assert.NotContains(t, w.Body.String(), "token_reuse_detected")
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(10*time.Millisecond))
	assert.Equal(t, 30, RetryAfterSeconds(30*time.Second))
	assert.Equal(t, 31, RetryAfterSeconds(30*time.Second+time.Millisecond))
}

func TestDomainCodeToHTTPStatus(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeInvalidCredentials: http.StatusUnauthorized,
		dErrors.CodeTokenExpired:       http.StatusUnauthorized,
		dErrors.CodeTokenRevoked:       http.StatusUnauthorized,
		dErrors.CodeForbidden:          http.StatusForbidden,
		dErrors.CodeUnavailable:        http.StatusServiceUnavailable,
		dErrors.Code("unknown"):        http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, DomainCodeToHTTPStatus(code), string(code))
	}
}

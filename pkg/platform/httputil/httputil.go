package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// ErrorResponse is the JSON body of every error the gateway returns.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
	RetryAfter       int    `json:"retry_after,omitempty"`
	Detail           string `json:"detail,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorWriter centralizes domain error translation to HTTP responses.
// Every response carries the request correlation ID. Internal details never
// reach the client; the missing-permission detail of authorization failures
// is rendered only when diagnostics are enabled.
type ErrorWriter struct {
	logger      *slog.Logger
	diagnostics bool
}

// NewErrorWriter creates an ErrorWriter. A nil logger disables error logging.
func NewErrorWriter(logger *slog.Logger, diagnostics bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, diagnostics: diagnostics}
}

// WriteError writes err without diagnostics or logging.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	(&ErrorWriter{}).Write(w, r, err)
}

// Write translates err into a status code, stable error code and JSON body.
func (ew *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	code := dErrors.CodeInternal
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}

	response := ErrorResponse{
		Error:     DomainCodeToHTTPCode(code),
		RequestID: requestID,
	}

	if domainErr != nil {
		if dErrors.IsOperational(err) {
			response.ErrorDescription = domainErr.Message
			if ew.diagnostics {
				response.Detail = domainErr.Detail
			}
		}
		if domainErr.RetryAfter > 0 {
			secs := RetryAfterSeconds(domainErr.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			response.RetryAfter = secs
		}
	}

	ew.log(r, code, err)
	WriteJSON(w, DomainCodeToHTTPStatus(code), response)
}

func (ew *ErrorWriter) log(r *http.Request, code dErrors.Code, err error) {
	if ew.logger == nil {
		return
	}
	ctx := r.Context()
	args := []any{
		"code", string(code),
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	}
	if reason := dErrors.ReasonOf(err); reason != "" {
		args = append(args, "reason", reason)
	}
	if dErrors.IsOperational(err) {
		ew.logger.WarnContext(ctx, "request rejected", args...)
		return
	}
	ew.logger.ErrorContext(ctx, "request failed", append(args, "error", err)...)
}

// RetryAfterSeconds rounds a positive duration up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials,
		dErrors.CodeTokenExpired, dErrors.CodeTokenInvalid, dErrors.CodeTokenRevoked:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeAccountLocked:
		return http.StatusLocked
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the stable error
// string of the JSON response.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeInvalidCredentials:
		return "invalid_credentials"
	case dErrors.CodeAccountLocked:
		return "account_locked"
	case dErrors.CodeTokenExpired:
		return "token_expired"
	case dErrors.CodeTokenInvalid:
		return "token_invalid"
	case dErrors.CodeTokenRevoked:
		return "token_revoked"
	case dErrors.CodeRateLimited:
		return "rate_limited"
	case dErrors.CodeUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

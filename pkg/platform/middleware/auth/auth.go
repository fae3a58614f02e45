package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// AccessVerifier validates a bearer access token's signature, expiry and
// type, and returns the principal it carries.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*domain.Principal, domain.TokenID, error)
}

type failureKey struct{}

// failure is why a request could not be authenticated.
type failure struct {
	err       error
	challenge string
}

// RequireAuth returns middleware that authenticates the bearer token and
// stores the principal in the request context. Failures are written with
// the stable token_* error codes.
func RequireAuth(verifier AccessVerifier, errs *httputil.ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	authenticate := Authenticate(verifier, logger)
	require := RequirePrincipal(errs)
	return func(next http.Handler) http.Handler {
		return authenticate(require(next))
	}
}

// Authenticate verifies the bearer token and stores the principal in the
// request context. A request that fails verification continues without a
// principal; RequirePrincipal later rejects it with the recorded error.
// Middleware placed between the two sees the caller's identity, if any.
func Authenticate(verifier AccessVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				ctx = context.WithValue(ctx, failureKey{}, failure{
					err:       dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"),
					challenge: `Bearer realm="gateway"`,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			principal, jti, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				ctx = context.WithValue(ctx, failureKey{}, failure{
					err:       err,
					challenge: `Bearer realm="gateway", error="invalid_token"`,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, principal, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects requests that Authenticate could not attach a
// principal to.
func RequirePrincipal(errs *httputil.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Principal(ctx) != nil {
				next.ServeHTTP(w, r)
				return
			}

			f, ok := ctx.Value(failureKey{}).(failure)
			if !ok {
				f = failure{
					err:       dErrors.New(dErrors.CodeUnauthorized, "authentication required"),
					challenge: `Bearer realm="gateway"`,
				}
			}
			w.Header().Set("WWW-Authenticate", f.challenge)
			errs.Write(w, r, f.err)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/handler"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/authz"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/health"
	ratelimitmw "github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/middleware"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/middleware/auth"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/middleware/metadata"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/middleware/request"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/validation"
)

const defaultRequestTimeout = 30 * time.Second

// Rate limit route names for the per-route auth scope.
const (
	RouteLogin   = "login"
	RouteRefresh = "refresh"
)

// Dependencies are the collaborators the router composes.
type Dependencies struct {
	Logger         *slog.Logger
	Errors         *httputil.ErrorWriter
	Metadata       *metadata.Middleware
	RequestMetrics *request.Metrics
	Health         *health.Handler
	Auth           *authhandler.Handler
	Verifier       auth.AccessVerifier
	RateLimit      *ratelimitmw.Middleware
	Gate           *authz.Gate
	Reports        *ReportsHandler
	Timeout        time.Duration
}

// NewRouter wires all public endpoints with middleware.
//
// Login:      throttle → auth-route limit by origin → global limit by origin → handler
// Refresh:    throttle → auth-route limit by origin → global limit by origin → rotation
// Protected:  throttle → access token → per-principal limit → global limit → reject anonymous → gate → handler
func NewRouter(deps Dependencies) http.Handler {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	errs := deps.Errors
	rl := deps.RateLimit

	r := chi.NewRouter()

	r.Use(request.Recovery(deps.Logger))
	r.Use(request.RequestID)
	r.Use(deps.Metadata.Handler)
	r.Use(request.Logger(deps.Logger))
	r.Use(request.LatencyMiddleware(deps.RequestMetrics))
	r.Use(request.Timeout(timeout))

	// Operational endpoints are not rate limited so probes keep working
	// while the gateway sheds load.
	deps.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rl.GlobalThrottle())
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(validation.MaxBodySize))

		r.With(rl.Auth(RouteLogin)).Post("/auth/login", deps.Auth.HandleLogin)
		r.Route(authhandler.SessionCookiePath, func(r chi.Router) {
			r.With(rl.Auth(RouteRefresh)).Post("/refresh", deps.Auth.HandleRefresh)
			r.With(rl.Global()).Post("/logout", deps.Auth.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(deps.Verifier, deps.Logger))
			r.Use(rl.User())
			r.Use(auth.RequirePrincipal(errs))

			r.With(deps.Gate.Require(errs, authz.Permission("profile:read"))).Get("/me", deps.Auth.HandleMe)
			r.With(deps.Gate.Require(errs, authz.Permission("read:reports"))).Get("/reports", deps.Reports.HandleList)
			r.With(deps.Gate.Require(errs, authz.Permission("write:reports"))).Post("/reports", deps.Reports.HandleCreate)
		})
	})

	return r
}

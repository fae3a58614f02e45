package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	authhandler "github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/handler"
	authmetrics "github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/metrics"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/service"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/tokens"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/authz"
	jwttoken "github.com/jasonachkar/secure-api-gateway-sub001/internal/jwt_token"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	ratelimitconfig "github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
	ratelimitmetrics "github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/metrics"
	ratelimitmw "github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/middleware"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/service/authlockout"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/service/globalthrottle"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/service/requestlimit"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore/cleanup"
	httptransport "github.com/jasonachkar/secure-api-gateway-sub001/internal/transport/http"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/middleware/metadata"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/middleware/request"
)

// application is the composed request path plus its background workers.
type application struct {
	router  http.Handler
	sweeper *cleanup.Service
}

func newApplication(ctx context.Context, cfg config.Server, log *slog.Logger, infra *infrastructure) (*application, error) {
	errs := httputil.NewErrorWriter(log, cfg.DiagnosticsMode)
	rlCfg := ratelimitconfig.FromServer(cfg)
	rlMetrics := ratelimitmetrics.New()
	authMetrics := authmetrics.New()

	fallback := statestore.NewMemoryStore(statestore.WithCapacity(rlCfg.Fallback.Capacity))
	limiter, err := requestlimit.New(infra.store,
		requestlimit.WithConfig(rlCfg),
		requestlimit.WithLogger(log),
		requestlimit.WithAuditLogger(infra.auditor),
		requestlimit.WithMetrics(rlMetrics),
		requestlimit.WithFallback(fallback),
	)
	if err != nil {
		return nil, fmt.Errorf("create request limiter: %w", err)
	}
	throttle := globalthrottle.New(
		globalthrottle.WithConfig(&rlCfg.Instance),
		globalthrottle.WithLogger(log),
		globalthrottle.WithMetrics(rlMetrics),
	)
	lockout, err := authlockout.New(infra.store,
		authlockout.WithConfig(&rlCfg.AuthLockout),
		authlockout.WithLogger(log),
		authlockout.WithAuditLogger(infra.auditor),
		authlockout.WithMetrics(rlMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create lockout tracker: %w", err)
	}

	key, err := jwttoken.LoadKey(cfg.Auth.JWTAlgorithm, cfg.Auth.JWTSigningKey, cfg.Auth.JWTPrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	manager, err := tokens.New(infra.store, jwttoken.NewJWTService(key, cfg.Auth.JWTIssuer),
		tokens.WithConfig(tokens.Config{
			AccessTTL:     cfg.Auth.AccessTokenTTL,
			SessionTTL:    cfg.Auth.SessionTokenTTL,
			RotationGrace: cfg.Auth.RotationGraceTTL,
			Mode:          cfg.Auth.RotationMode,
			ReuseGrace:    cfg.Auth.RotationReuseGrace,
		}),
		tokens.WithLogger(log),
		tokens.WithAuditLogger(infra.auditor),
		tokens.WithMetrics(authMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	roles, err := authz.LoadRoleTable(cfg.Auth.RolePermissionsFile)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	users, err := newUserDirectory(ctx, cfg, log, infra)
	if err != nil {
		return nil, err
	}

	authService := service.New(users, lockout, manager, roles,
		service.WithLogger(log),
		service.WithAuditLogger(infra.auditor),
		service.WithMetrics(authMetrics),
	)

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Errors:         errs,
		Metadata:       metadata.NewMiddleware(&metadata.Config{TrustedProxies: proxies}),
		RequestMetrics: request.NewMetrics(),
		Health:         infra.health,
		Auth:           authhandler.New(authService, errs, log, cfg.CookieSecure),
		Verifier:       manager,
		RateLimit:      ratelimitmw.New(limiter, throttle, errs, log),
		Gate: authz.New(
			authz.WithLogger(log),
			authz.WithAuditLogger(infra.auditor),
			authz.WithMetrics(authz.NewMetrics()),
		),
		Reports: &httptransport.ReportsHandler{},
	})

	sweeper, err := cleanup.New(map[string]cleanup.Sweeper{
		"ratelimit_fallback": fallback,
		"state":              sweepable(infra.memory),
	}, cleanup.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create state sweeper: %w", err)
	}

	return &application{router: router, sweeper: sweeper}, nil
}

// sweepable keeps a nil *MemoryStore from becoming a non-nil interface.
func sweepable(m *statestore.MemoryStore) cleanup.Sweeper {
	if m == nil {
		return nil
	}
	return m
}

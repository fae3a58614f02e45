package authz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Gate decides whether a principal satisfies a Requirement.
type Gate struct {
	logger  *slog.Logger
	auditor *audit.Logger
	metrics *Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithAuditLogger(auditor *audit.Logger) Option {
	return func(g *Gate) {
		g.auditor = auditor
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Authorize returns nil when p satisfies req. A nil principal is
// Unauthorized; any missing permission is Forbidden, with the missing
// permissions in the error's Detail.
func (g *Gate) Authorize(ctx context.Context, p *domain.Principal, req Requirement) error {
	if p == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	missing := req.Missing(p)
	if len(missing) == 0 {
		g.record("allowed")
		return nil
	}

	g.record("denied")
	missingList := strings.Join(missing, ",")
	g.logger.WarnContext(ctx, "authorization denied",
		"principal_id", p.ID.String(),
		"required", req.String(),
		"missing", missingList,
		"request_id", requestcontext.RequestID(ctx),
	)
	g.auditor.Log(ctx, audit.ActionAuthorizationDenied,
		"principal_id", p.ID.String(),
		"reason", "missing_permission",
		"missing", missingList,
	)
	return &dErrors.Error{
		Code:    dErrors.CodeForbidden,
		Message: "insufficient permissions",
		Reason:  "missing_permission",
		Detail:  "missing permission: " + missingList,
	}
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordDecision(outcome)
	}
}

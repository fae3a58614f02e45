package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Refresh exchanges a session token for a new credential pair. Replay of an
// already rotated token revokes the whole family inside the token manager.
func (s *Service) Refresh(ctx context.Context, sessionToken string) (pair *models.CredentialPair, err error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveRefreshDuration(float64(s.now().Sub(start).Milliseconds()))
		}
		endSpan(span, err)
	}()

	if sessionToken == "" {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "session token required")
	}
	return s.tokens.Rotate(ctx, sessionToken)
}

// Logout revokes the session token. It never fails from the caller's point
// of view: missing, invalid and expired tokens are already unusable, and a
// store failure is logged.
func (s *Service) Logout(ctx context.Context, sessionToken string) {
	if sessionToken == "" {
		return
	}
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if err := s.tokens.Logout(ctx, sessionToken); err != nil {
		level := s.logger.InfoContext
		if !dErrors.IsOperational(err) {
			level = s.logger.ErrorContext
			span.RecordError(err)
		}
		level(ctx, "logout could not revoke session",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

var reasonAttr = attribute.Key("reason")

func endSpan(span trace.Span, err error) {
	if err != nil {
		if reason := dErrors.ReasonOf(err); reason != "" {
			span.SetAttributes(reasonAttr.String(reason))
		}
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/store/user"
	id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Login outcomes for metrics and audit.
const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeLocked             = "locked"
	outcomeError              = "error"
)

// Login authenticates username/password from the request's origin and
// issues a credential pair.
//
// The lockout check runs before the directory is consulted, so a locked pair
// learns nothing about the password. Unknown, disabled and wrong-password
// attempts cost the same bcrypt work, count against the lockout identically
// and return the same InvalidCredentials error.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (pair *models.CredentialPair, err error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() {
		s.observeLogin(start, err)
		endSpan(span, err)
	}()

	username := req.Username
	ip := requestcontext.ClientIP(ctx)

	locked, lockErr := s.lockout.IsLocked(ctx, username, ip)
	if lockErr != nil {
		s.logger.ErrorContext(ctx, "lockout check failed, denying login",
			"error", lockErr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if locked {
		return nil, s.lockedError(ctx, username, ip, "locked")
	}

	u, verifyErr := s.verifyCredentials(ctx, username, req.Password)
	if verifyErr != nil {
		if !dErrors.HasCode(verifyErr, dErrors.CodeInvalidCredentials) {
			return nil, verifyErr
		}
		return nil, s.recordFailure(ctx, username, ip, dErrors.ReasonOf(verifyErr))
	}

	if err := s.lockout.Reset(ctx, username, ip); err != nil {
		// The counter expires on its own; the login itself is valid.
		s.logger.WarnContext(ctx, "failed to reset lockout counter",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	principal := id.NewPrincipal(u.ID, u.DisplayName, u.Roles, s.roles.Permissions(u.Roles))
	pair, err = s.tokens.Issue(ctx, principal)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue credentials")
	}

	span.SetAttributes(attribute.String("principal_id", u.ID.String()))
	s.auditor.Log(ctx, audit.ActionLoginSucceeded,
		"principal_id", u.ID,
		"username", u.Username,
		"family_id", pair.FamilyID,
	)
	return pair, nil
}

// verifyCredentials looks the user up and checks the password. Every
// credential failure is CodeInvalidCredentials with a server-side reason.
func (s *Service) verifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, invalidCredentials("unknown_user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if err := s.passwords.Verify(password, u.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			return nil, invalidCredentials("bad_password")
		}
		return nil, err
	}
	if !u.CanAuthenticate() {
		return nil, invalidCredentials("user_disabled")
	}
	return u, nil
}

// recordFailure counts the failed attempt and picks the error returned to
// the caller. The attempt that reaches the limit is already answered with
// AccountLocked.
func (s *Service) recordFailure(ctx context.Context, username, ip, reason string) error {
	s.auditor.Log(ctx, audit.ActionLoginFailed,
		"username", username,
		"reason", reason,
	)

	count, err := s.lockout.RecordFailure(ctx, username, ip)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record auth failure, denying as locked",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return s.lockedError(ctx, username, ip, "lockout_store_unavailable")
	}
	if count >= s.lockout.MaxAttempts() {
		return s.lockedError(ctx, username, ip, "max_attempts_reached")
	}
	return invalidCredentials(reason)
}

func (s *Service) lockedError(ctx context.Context, username, ip, reason string) error {
	secs, err := s.lockout.RemainingLockSeconds(ctx, username, ip)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read lockout expiry",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.auditor.Log(ctx, audit.ActionLoginLocked,
		"username", username,
		"reason", reason,
		"retry_after_seconds", secs,
	)
	return &dErrors.Error{
		Code:       dErrors.CodeAccountLocked,
		Message:    "account temporarily locked, try again later",
		Reason:     reason,
		RetryAfter: time.Duration(max(secs, 1)) * time.Second,
	}
}

func (s *Service) observeLogin(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeInvalidCredentials):
		outcome = outcomeInvalidCredentials
	case dErrors.HasCode(err, dErrors.CodeAccountLocked):
		outcome = outcomeLocked
	default:
		outcome = outcomeError
	}
	s.metrics.RecordLogin(outcome)
	s.metrics.ObserveLoginDuration(float64(s.now().Sub(start).Milliseconds()))
}

func invalidCredentials(reason string) error {
	return dErrors.NewWithReason(dErrors.CodeInvalidCredentials, "invalid username or password", reason)
}

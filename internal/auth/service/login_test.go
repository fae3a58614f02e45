package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/service/mocks"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/service/authlockout"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// =============================================================================
// Login
// =============================================================================

func (s *ServiceSuite) TestLoginSuccess() {
	pair, err := s.login("alice", alicePassword)
	s.Require().NoError(err)
	s.NotEmpty(pair.AccessToken)
	s.NotEmpty(pair.SessionToken)
	s.False(pair.FamilyID.IsNil())

	principal, _, err := s.tokens.VerifyAccess(s.ctx, pair.AccessToken)
	s.Require().NoError(err)
	s.Equal("u-alice", principal.ID.String())
	s.Equal("Alice", principal.DisplayName)
	s.Equal([]string{"analyst"}, principal.Roles)
	s.Equal([]string{"profile:read", "read:reports"}, principal.Permissions)

	events := s.recorder.ByAction(audit.ActionLoginSucceeded)
	s.Require().Len(events, 1)
	s.Equal("u-alice", events[0].PrincipalID)
	s.Equal(pair.FamilyID.String(), events[0].FamilyID)
}

func (s *ServiceSuite) TestLoginUsernameIsCaseInsensitive() {
	_, err := s.login("ALICE", alicePassword)
	s.NoError(err)
}

// Justification: unknown users, disabled users and wrong passwords must be
// indistinguishable to the client.
func (s *ServiceSuite) TestLoginFailuresAreUniform() {
	cases := []struct {
		name     string
		username string
		password string
		reason   string
	}{
		{"wrong password", "alice", "nope", "bad_password"},
		{"unknown user", "mallory", alicePassword, "unknown_user"},
		{"disabled user", "bob", alicePassword, "user_disabled"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.login(tc.username, tc.password)
			s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials), "got %v", err)
			s.Equal("invalid username or password", err.Error())
			s.Equal(tc.reason, dErrors.ReasonOf(err))
		})
	}
	s.Len(s.recorder.ByAction(audit.ActionLoginFailed), 3)
}

func (s *ServiceSuite) TestLockout() {
	s.Run("attempt reaching the limit is locked", func() {
		for i := 0; i < 2; i++ {
			_, err := s.login("alice", "wrong")
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		}
		_, err := s.login("alice", "wrong")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeAccountLocked), "got %v", err)
		s.Equal(15*time.Minute, dErrors.RetryAfterOf(err))
	})

	s.Run("correct password is refused while locked", func() {
		_, err := s.login("alice", alicePassword)
		s.True(dErrors.HasCode(err, dErrors.CodeAccountLocked))
		s.Equal("locked", dErrors.ReasonOf(err))
	})

	s.Run("other origins are unaffected", func() {
		ctx := requestcontext.WithClientMetadata(context.Background(), "198.51.100.1", "test-agent")
		_, err := s.service.Login(ctx, &models.LoginRequest{Username: "alice", Password: alicePassword})
		s.NoError(err)
	})

	s.Run("lock expires with the window", func() {
		s.clock.Advance(15*time.Minute + time.Second)
		_, err := s.login("alice", alicePassword)
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestSuccessResetsFailureCount() {
	for i := 0; i < 2; i++ {
		_, _ = s.login("alice", "wrong")
	}
	_, err := s.login("alice", alicePassword)
	s.Require().NoError(err)

	for i := 0; i < 2; i++ {
		_, err = s.login("alice", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	}
}

func (s *ServiceSuite) TestUnknownUsersAreCountedLikeKnownOnes() {
	var err error
	for i := 0; i < 3; i++ {
		_, err = s.login("mallory", "guess")
	}
	s.True(dErrors.HasCode(err, dErrors.CodeAccountLocked))
	s.Len(s.recorder.ByAction(audit.ActionLockoutTriggered), 1)
}

func (s *ServiceSuite) TestLockoutStoreFailureDeniesLogin() {
	lockout, err := authlockout.New(unreachableStore{})
	s.Require().NoError(err)
	svc := s.newService(s.users, lockout, s.tokens)

	_, err = svc.Login(s.ctx, &models.LoginRequest{Username: "alice", Password: alicePassword})
	s.Require().True(dErrors.HasCode(err, dErrors.CodeAccountLocked), "got %v", err)
	s.Positive(dErrors.RetryAfterOf(err))
}

func (s *ServiceSuite) TestDirectoryFailure() {
	ctrl := gomock.NewController(s.T())
	users := mocks.NewMockUserStore(ctrl)
	users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, errors.New("connection refused")).Times(3)
	svc := s.newService(users, s.lockout, s.tokens)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(s.ctx, &models.LoginRequest{Username: "alice", Password: alicePassword})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)
	}

	locked, err := s.lockout.IsLocked(s.ctx, "alice", clientIP)
	s.Require().NoError(err)
	s.False(locked, "infrastructure failures are not counted as bad credentials")
}

func (s *ServiceSuite) TestIssueFailure() {
	ctrl := gomock.NewController(s.T())
	tm := mocks.NewMockTokenManager(ctrl)
	tm.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUnavailable, "store down"))
	svc := s.newService(s.users, s.lockout, tm)

	_, err := svc.Login(s.ctx, &models.LoginRequest{Username: "alice", Password: alicePassword})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

package service

import (
	"errors"

	"go.uber.org/mock/gomock"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/service/mocks"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/tokens"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// =============================================================================
// Refresh and Logout
// =============================================================================

func (s *ServiceSuite) TestRefresh() {
	first, err := s.login("alice", alicePassword)
	s.Require().NoError(err)

	s.Run("rotation keeps the family", func() {
		second, err := s.service.Refresh(s.ctx, first.SessionToken)
		s.Require().NoError(err)
		s.NotEqual(first.SessionToken, second.SessionToken)
		s.Equal(first.FamilyID, second.FamilyID)

		s.Run("replaying the rotated token revokes the family", func() {
			_, err := s.service.Refresh(s.ctx, first.SessionToken)
			s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
			s.Equal(tokens.ReasonReuseDetected, dErrors.ReasonOf(err))

			_, err = s.service.Refresh(s.ctx, second.SessionToken)
			s.Error(err, "descendant tokens die with the family")
			s.NotEmpty(s.recorder.ByAction(audit.ActionFamilyRevoked))
		})
	})

	s.Run("missing token", func() {
		_, err := s.service.Refresh(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})

	s.Run("access token is not a session token", func() {
		_, err := s.service.Refresh(s.ctx, first.AccessToken)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})
}

func (s *ServiceSuite) TestLogout() {
	pair, err := s.login("alice", alicePassword)
	s.Require().NoError(err)

	s.service.Logout(s.ctx, pair.SessionToken)

	_, err = s.service.Refresh(s.ctx, pair.SessionToken)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRevoked), "got %v", err)
	s.Len(s.recorder.ByAction(audit.ActionSessionRevoked), 1)

	s.Run("garbage and empty tokens are ignored", func() {
		s.NotPanics(func() {
			s.service.Logout(s.ctx, "")
			s.service.Logout(s.ctx, "not-a-token")
		})
	})
}

func (s *ServiceSuite) TestLogoutSwallowsStoreErrors() {
	ctrl := gomock.NewController(s.T())
	tm := mocks.NewMockTokenManager(ctrl)
	tm.EXPECT().Logout(gomock.Any(), "session-token").Return(errors.New("store down"))
	svc := s.newService(s.users, s.lockout, tm)

	s.NotPanics(func() { svc.Logout(s.ctx, "session-token") })
}

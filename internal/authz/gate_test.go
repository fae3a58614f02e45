package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/testutil"
)

type GateSuite struct {
	suite.Suite
	gate     *Gate
	recorder *testutil.AuditRecorder
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	auditor, recorder := testutil.NewAuditLogger()
	s.recorder = recorder
	s.gate = New(WithAuditLogger(auditor), WithMetrics(NewMetrics()))
}

// =============================================================================
// Authorize
// =============================================================================

func (s *GateSuite) TestAuthorize() {
	ctx := context.Background()
	alice := testutil.NewPrincipal("alice").WithPermissions("read:reports").Build()

	s.Run("held permission is allowed", func() {
		s.NoError(s.gate.Authorize(ctx, alice, Permission("read:reports")))
	})

	s.Run("missing permission is forbidden with detail", func() {
		err := s.gate.Authorize(ctx, alice, Permission("write:reports"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))

		var domainErr *dErrors.Error
		s.Require().ErrorAs(err, &domainErr)
		s.Equal("missing permission: write:reports", domainErr.Detail)
	})

	s.Run("any-of needs one match", func() {
		s.NoError(s.gate.Authorize(ctx, alice, AnyOf("write:reports", "read:reports")))
		s.Error(s.gate.Authorize(ctx, alice, AnyOf("write:reports", "admin:all")))
	})

	s.Run("all-of needs every permission", func() {
		err := s.gate.Authorize(ctx, alice, AllOf("read:reports", "write:reports"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("empty requirement is never satisfied", func() {
		s.Error(s.gate.Authorize(ctx, alice, AllOf()))
		s.Error(s.gate.Authorize(ctx, alice, AnyOf(" ")))
	})

	s.Run("nil principal is unauthorized", func() {
		err := s.gate.Authorize(ctx, nil, Permission("read:reports"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// Justification: roles are resolved at issuance; a role name alone must not
// grant anything at the gate.
func (s *GateSuite) TestRolesAreNotReResolved() {
	admin := testutil.NewPrincipal("root").WithRoles("admin").Build()
	err := s.gate.Authorize(context.Background(), admin, Permission("read:reports"))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *GateSuite) TestDenialIsAudited() {
	bob := testutil.NewPrincipal("bob").Build()
	_ = s.gate.Authorize(context.Background(), bob, Permission("write:reports"))

	events := s.recorder.ByAction(audit.ActionAuthorizationDenied)
	s.Require().Len(events, 1)
	s.Equal("bob", events[0].PrincipalID)
	s.Equal("missing_permission", events[0].Reason)
}

// =============================================================================
// Require middleware
// =============================================================================

func (s *GateSuite) TestRequireMiddleware() {
	alice := testutil.NewPrincipal("alice").WithPermissions("read:reports").Build()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(errs *httputil.ErrorWriter, req Requirement) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/reports", nil)
		r = r.WithContext(requestcontext.WithPrincipal(r.Context(), alice, "jti-1"))
		w := httptest.NewRecorder()
		s.gate.Require(errs, req)(ok).ServeHTTP(w, r)
		return w
	}

	s.Run("satisfied requirement reaches the handler", func() {
		w := serve(nil, Permission("read:reports"))
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("denial is 403 without detail", func() {
		w := serve(httputil.NewErrorWriter(nil, false), Permission("write:reports"))
		s.Equal(http.StatusForbidden, w.Code)
		s.NotContains(w.Body.String(), "write:reports")
	})

	s.Run("diagnostics mode shows the missing permission", func() {
		w := serve(httputil.NewErrorWriter(nil, true), Permission("write:reports"))
		s.Equal(http.StatusForbidden, w.Code)
		s.Contains(w.Body.String(), "missing permission: write:reports")
	})

	s.Run("anonymous request is 401", func() {
		r := httptest.NewRequest(http.MethodGet, "/reports", nil)
		w := httptest.NewRecorder()
		s.gate.Require(nil, Permission("read:reports"))(ok).ServeHTTP(w, r)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

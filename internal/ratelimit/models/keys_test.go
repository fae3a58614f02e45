package models

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Rate Limit Key Security Test Suite
// =============================================================================
// Crafted identifiers containing the delimiter must never address another
// counter.

type KeySecuritySuite struct {
	suite.Suite
}

func TestKeySecuritySuite(t *testing.T) {
	suite.Run(t, new(KeySecuritySuite))
}

func (s *KeySecuritySuite) TestKeyCollisionAttack() {
	s.Run("colon in identifier is escaped", func() {
		key := NewRateLimitKey(ScopeUser, "user:admin", "")
		s.Equal("rl:user:user_cadmin", key.String())
	})

	s.Run("escape character cannot forge an escaped colon", func() {
		a := NewRateLimitKey(ScopeGlobal, "a_cb", "").String()
		b := NewRateLimitKey(ScopeGlobal, "a:b", "").String()
		s.NotEqual(a, b)
	})

	s.Run("identifier cannot impersonate a route segment", func() {
		withRoute := NewRateLimitKey(ScopeAuth, "203.0.113.1", "login").String()
		forged := NewRateLimitKey(ScopeAuth, "login:203.0.113.1", "").String()
		s.NotEqual(withRoute, forged)
	})

	s.Run("auth lockout key escapes identifier and origin", func() {
		key := NewAuthLockoutKey("admin:user", "2001:db8::1")
		s.Equal("lockout:admin_cuser:2001_cdb8_c_c1", key)
	})

	s.Run("legitimate keys", func() {
		s.Equal("rl:auth:login:203.0.113.1", NewRateLimitKey(ScopeAuth, "203.0.113.1", "login").String())
		s.Equal("rl:user:user-123", ScopeCheck{Scope: ScopeUser, Identifier: "user-123"}.Key())
	})
}

func TestScopeIsValid(t *testing.T) {
	for _, sc := range []Scope{ScopeGlobal, ScopeAuth, ScopeUser} {
		if !sc.IsValid() {
			t.Fatalf("%s should be valid", sc)
		}
	}
	if Scope("tenant").IsValid() {
		t.Fatal("unknown scope should be invalid")
	}
}

package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

// TestParseTokenID_Invariants validates the parsing invariant:
// "token and family IDs must be valid, non-nil UUIDs"
func TestParseTokenID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTokenID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseFamilyID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTokenID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("accepts generated IDs", func(t *testing.T) {
		jti := NewTokenID()
		parsed, err := ParseTokenID(jti.String())
		require.NoError(t, err)
		assert.Equal(t, jti, parsed)
	})
}

func TestParsePrincipalID(t *testing.T) {
	_, err := ParsePrincipalID("")
	require.Error(t, err)

	id, err := ParsePrincipalID("user-123")
	require.NoError(t, err)
	assert.Equal(t, PrincipalID("user-123"), id)
	assert.False(t, id.IsNil())
}

func TestPrincipal(t *testing.T) {
	p := NewPrincipal("u1", "Alice", []string{"viewer", "viewer", ""}, []string{"read:reports", "profile:read", "read:reports"})

	assert.Equal(t, []string{"viewer"}, p.Roles)
	assert.Equal(t, []string{"profile:read", "read:reports"}, p.Permissions)

	t.Run("permission match is exact", func(t *testing.T) {
		assert.True(t, p.HasPermission("read:reports"))
		assert.False(t, p.HasPermission("read:report"))
		assert.False(t, p.HasPermission("write:reports"))
	})

	t.Run("nil principal has nothing", func(t *testing.T) {
		var none *Principal
		assert.False(t, none.HasPermission("read:reports"))
		assert.False(t, none.HasRole("viewer"))
	})

	t.Run("role lookup", func(t *testing.T) {
		assert.True(t, p.HasRole("viewer"))
		assert.False(t, p.HasRole("admin"))
	})
}

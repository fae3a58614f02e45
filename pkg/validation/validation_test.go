package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

type credentials struct {
	Username string `json:"username" validate:"required,notblank,max=8"`
	Password string `json:"password" validate:"required"`
}

func TestValidate(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		require.NoError(t, Validate(&credentials{Username: "alice", Password: "pw"}))
	})

	t.Run("missing field is named by its json tag", func(t *testing.T) {
		err := Validate(&credentials{Username: "alice"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "password is required", err.Error())
	})

	t.Run("blank value is rejected", func(t *testing.T) {
		err := Validate(&credentials{Username: "   ", Password: "pw"})
		require.Error(t, err)
		assert.Equal(t, "username must not be blank", err.Error())
	})

	t.Run("length bound", func(t *testing.T) {
		err := Validate(&credentials{Username: "much-too-long", Password: "pw"})
		require.Error(t, err)
		assert.Equal(t, "username must be at most 8", err.Error())
	})
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "user_name", toSnakeCase("UserName"))
	assert.Equal(t, "http_status", toSnakeCase("HTTPStatus"))
	assert.Equal(t, "password", toSnakeCase("password"))
}

package models

import (
	"strings"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/validation"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// Normalize trims the username. The password is used verbatim.
func (r *LoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

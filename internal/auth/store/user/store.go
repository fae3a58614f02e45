// Package user is the credential directory consulted at login.
//
// Error Contract:
//   - FindByUsername returns ErrNotFound when no user has the name
//   - Save returns ErrAlreadyExists when another user holds the name
//   - infrastructure failures are wrapped with context
package user

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

// normalizeUsername is the lookup form of a username. Usernames are
// matched case-insensitively.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

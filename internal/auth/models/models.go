package models

import (
	"time"

	id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
)

// This file contains pure domain models for authentication: entities
// that should not depend on transport or HTTP-specific concerns.

// User is an entry of the credential directory.
type User struct {
	ID           id.PrincipalID
	Username     string
	DisplayName  string
	PasswordHash string
	Roles        []string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAuthenticate reports whether the user may log in.
func (u *User) CanAuthenticate() bool {
	return u != nil && !u.Disabled
}

// CredentialPair is the result of a login or a rotation. The access token is
// not tracked server side; the session token is backed by a SessionRecord.
type CredentialPair struct {
	AccessToken      string
	SessionToken     string
	AccessExpiresAt  time.Time
	SessionExpiresAt time.Time
	FamilyID         id.FamilyID
	SessionID        id.TokenID
}

// SessionRecord is the server-side state of one live session token, keyed by
// its jti. It exists only while the token has been neither rotated nor revoked.
type SessionRecord struct {
	JTI            id.TokenID     `json:"jti"`
	PrincipalID    id.PrincipalID `json:"principal_id"`
	CredentialHash string         `json:"credential_hash"`
	FamilyID       id.FamilyID    `json:"family_id"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	LastUsedAt     time.Time      `json:"last_used_at"`
	Device         string         `json:"device,omitempty"`
}

// MarkerKind records why a jti must never be honored again.
type MarkerKind string

const (
	// MarkerRotated is written when a session token is exchanged for a new pair.
	// Presenting the jti again is token reuse.
	MarkerRotated MarkerKind = "rotated"
	// MarkerRevoked is written by logout and explicit revocation.
	MarkerRevoked MarkerKind = "revoked"
	// MarkerFamilyRevoked is written on every member of a revoked family.
	MarkerFamilyRevoked MarkerKind = "family_revoked"
)

// RevocationMarker is stored under a revoked jti for a bounded time.
type RevocationMarker struct {
	Kind      MarkerKind  `json:"kind"`
	FamilyID  id.FamilyID `json:"family_id,omitempty"`
	RevokedAt time.Time   `json:"revoked_at"`
}

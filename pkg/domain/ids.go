// Package domain provides the identifiers and the principal shared by the
// gateway's security components.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a TokenID where a FamilyID is expected.
type (
	// PrincipalID is the stable identifier of an authenticated identity.
	PrincipalID string
	// TokenID is the unique identifier (jti) of one issued token.
	TokenID string
	// FamilyID groups every session credential descended from one login.
	FamilyID string
)

// NewTokenID returns a fresh random token identifier.
func NewTokenID() TokenID { return TokenID(uuid.NewString()) }

// NewFamilyID returns a fresh random family identifier.
func NewFamilyID() FamilyID { return FamilyID(uuid.NewString()) }

// Parse functions - use at trust boundaries (token claims, store records).

func ParsePrincipalID(s string) (PrincipalID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "principal ID cannot be empty")
	}
	return PrincipalID(s), nil
}

func ParseTokenID(s string) (TokenID, error) {
	id, err := parseUUID(s, "token ID")
	return TokenID(id), err
}

func ParseFamilyID(s string) (FamilyID, error) {
	id, err := parseUUID(s, "family ID")
	return FamilyID(id), err
}

func (id PrincipalID) String() string { return string(id) }
func (id TokenID) String() string     { return string(id) }
func (id FamilyID) String() string    { return string(id) }

func (id PrincipalID) IsNil() bool { return id == "" }
func (id TokenID) IsNil() bool     { return id == "" }
func (id FamilyID) IsNil() bool    { return id == "" }

func parseUUID(s, label string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return "", dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	return id.String(), nil
}

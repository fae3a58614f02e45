package domain

import (
	"slices"
	"sort"
)

// Principal is an authenticated identity and its effective permissions.
// A principal is immutable for the lifetime of the credential that carries it;
// role changes take effect at the next login.
type Principal struct {
	ID          PrincipalID
	DisplayName string
	Roles       []string
	Permissions []string
}

// NewPrincipal builds a principal with sorted, de-duplicated roles and permissions.
func NewPrincipal(id PrincipalID, displayName string, roles, permissions []string) *Principal {
	return &Principal{
		ID:          id,
		DisplayName: displayName,
		Roles:       normalize(roles),
		Permissions: normalize(permissions),
	}
}

// HasPermission reports whether the principal carries the exact permission.
func (p *Principal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	_, found := slices.BinarySearch(p.Permissions, permission)
	return found
}

// HasRole reports whether the principal holds the role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

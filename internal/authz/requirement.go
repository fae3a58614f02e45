// Package authz gates requests on the permissions already carried by an
// authenticated principal. Roles are resolved into permissions once, at
// credential issuance, through an immutable RoleTable; the gate only tests
// set membership.
package authz

import (
	"strings"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
)

// Match is how a Requirement combines its permissions.
type Match int

const (
	MatchAll Match = iota
	MatchAny
)

// Requirement is the permission a route demands: a single permission, any
// of a set, or all of a set. An empty requirement is never satisfied.
type Requirement struct {
	match       Match
	permissions []string
}

// Permission requires one exact permission.
func Permission(permission string) Requirement {
	return Requirement{match: MatchAll, permissions: []string{permission}}
}

// AnyOf is satisfied by at least one of the permissions.
func AnyOf(permissions ...string) Requirement {
	return Requirement{match: MatchAny, permissions: compact(permissions)}
}

// AllOf is satisfied only when every permission is held.
func AllOf(permissions ...string) Requirement {
	return Requirement{match: MatchAll, permissions: compact(permissions)}
}

// Missing returns the permissions that keep p from satisfying r. For any-of
// requirements the whole set is missing when none is held. Nil means
// satisfied.
func (r Requirement) Missing(p *domain.Principal) []string {
	if len(r.permissions) == 0 {
		return []string{"<none declared>"}
	}
	if r.match == MatchAny {
		for _, perm := range r.permissions {
			if p.HasPermission(perm) {
				return nil
			}
		}
		return append([]string(nil), r.permissions...)
	}

	var missing []string
	for _, perm := range r.permissions {
		if !p.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	return missing
}

func (r Requirement) String() string {
	sep := " and "
	if r.match == MatchAny {
		sep = " or "
	}
	return strings.Join(r.permissions, sep)
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package authz

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// RoleTable maps role names to permission sets. It is built once at startup
// and never mutated afterwards, so it is safe for concurrent use.
type RoleTable struct {
	roles map[string][]string
}

// roleFile is the TOML layout of ROLE_PERMISSIONS_FILE:
//
//	[roles]
//	admin = ["read:reports", "write:reports", "profile:read"]
//	user  = ["profile:read"]
type roleFile struct {
	Roles map[string][]string `toml:"roles"`
}

// DefaultRoleTable is used when no role file is configured.
func DefaultRoleTable() *RoleTable {
	return NewRoleTable(map[string][]string{
		"admin":   {"profile:read", "read:reports", "write:reports", "sessions:revoke"},
		"analyst": {"profile:read", "read:reports"},
		"user":    {"profile:read"},
	})
}

// NewRoleTable copies roles into an immutable table. Role names are
// lowercased; permission lists are sorted and de-duplicated.
func NewRoleTable(roles map[string][]string) *RoleTable {
	t := &RoleTable{roles: make(map[string][]string, len(roles))}
	for role, perms := range roles {
		key := strings.ToLower(strings.TrimSpace(role))
		if key == "" {
			continue
		}
		merged := append(slices.Clone(t.roles[key]), compact(perms)...)
		sort.Strings(merged)
		t.roles[key] = slices.Compact(merged)
	}
	return t
}

// LoadRoleTable reads a TOML role file. An empty path yields the defaults.
func LoadRoleTable(path string) (*RoleTable, error) {
	if path == "" {
		return DefaultRoleTable(), nil
	}
	var file roleFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode role file %s: %w", path, err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("role file %s defines no roles", path)
	}
	return NewRoleTable(file.Roles), nil
}

// Permissions resolves roles into the union of their permissions. Unknown
// roles contribute nothing.
func (t *RoleTable) Permissions(roles []string) []string {
	var out []string
	for _, role := range roles {
		out = append(out, t.roles[strings.ToLower(strings.TrimSpace(role))]...)
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// Roles lists the known role names.
func (t *RoleTable) Roles() []string {
	return slices.Sorted(maps.Keys(t.roles))
}

package models

import (
	"fmt"
	"strings"
)

// RateLimitKey is a value object encapsulating store key construction.
// It centralizes key format and sanitization to prevent key collision attacks.
type RateLimitKey struct {
	scope      Scope
	identifier string
	route      string
}

// NewRateLimitKey creates a key for a scope counter. route is optional.
func NewRateLimitKey(scope Scope, identifier, route string) RateLimitKey {
	return RateLimitKey{
		scope:      scope,
		identifier: sanitizeKeySegment(identifier),
		route:      sanitizeKeySegment(route),
	}
}

// String returns the formatted key for storage lookup.
func (k RateLimitKey) String() string {
	if k.route == "" {
		return fmt.Sprintf("rl:%s:%s", k.scope, k.identifier)
	}
	return fmt.Sprintf("rl:%s:%s:%s", k.scope, k.route, k.identifier)
}

// NewAuthLockoutKey creates the composite key for per-identifier-per-origin
// lockout counters.
func NewAuthLockoutKey(identifier, ip string) string {
	return fmt.Sprintf("lockout:%s:%s", sanitizeKeySegment(identifier), sanitizeKeySegment(ip))
}

// sanitizeKeySegment escapes delimiter characters so that user-controlled
// identifiers containing ':' cannot address adjacent counters.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// Examples:
//   - "user:admin"  → "user_cadmin"
//   - "user_admin"  → "user__admin"
//   - "user_:admin" → "user___cadmin"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}

package models

import "time"

// Scope is the dimension a request is counted under.
type Scope string

const (
	// ScopeGlobal counts every request from one client origin.
	ScopeGlobal Scope = "global"
	// ScopeAuth counts requests to one authentication route from one origin.
	ScopeAuth Scope = "auth"
	// ScopeUser counts requests made by one authenticated principal.
	ScopeUser Scope = "user"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeGlobal, ScopeAuth, ScopeUser:
		return true
	}
	return false
}

// Limit is a fixed-window request budget.
type Limit struct {
	Max    int
	Window time.Duration
}

// ScopeCheck is one counter to increment and compare.
type ScopeCheck struct {
	Scope Scope
	// Identifier is the origin address or principal ID.
	Identifier string
	// Route distinguishes auth routes; empty for other scopes.
	Route string
	Limit Limit
}

// Key returns the store key for this check.
func (c ScopeCheck) Key() string {
	return NewRateLimitKey(c.Scope, c.Identifier, c.Route).String()
}

// RateLimitResult is the outcome of one scope check.
type RateLimitResult struct {
	Scope     Scope
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set only when the request was denied.
	RetryAfter time.Duration
	// Degraded is set when the decision came from the in-process fallback.
	Degraded bool
}

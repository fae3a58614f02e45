package testutil

import (
	"sync"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
)

// Clock is a manually advanced time source for deterministic window and
// expiry tests. The zero value starts at a fixed instant.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// PrincipalBuilder provides a fluent interface for building test principals.
type PrincipalBuilder struct {
	id          domain.PrincipalID
	name        string
	roles       []string
	permissions []string
}

// NewPrincipal starts a builder for a principal with the given ID.
func NewPrincipal(id string) *PrincipalBuilder {
	return &PrincipalBuilder{id: domain.PrincipalID(id), name: id}
}

func (b *PrincipalBuilder) WithName(name string) *PrincipalBuilder {
	b.name = name
	return b
}

func (b *PrincipalBuilder) WithRoles(roles ...string) *PrincipalBuilder {
	b.roles = append(b.roles, roles...)
	return b
}

func (b *PrincipalBuilder) WithPermissions(permissions ...string) *PrincipalBuilder {
	b.permissions = append(b.permissions, permissions...)
	return b
}

func (b *PrincipalBuilder) Build() *domain.Principal {
	return domain.NewPrincipal(b.id, b.name, b.roles, b.permissions)
}

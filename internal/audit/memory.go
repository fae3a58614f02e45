package audit

import (
	"context"
	"sync"

	pkgaudit "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// MemorySink keeps the most recent events in process. Used when no broker is
// configured and in tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []pkgaudit.Event
	limit  int
}

// NewMemorySink retains at most limit events; older ones are discarded.
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 1000
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Write(_ context.Context, event pkgaudit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if over := len(s.events) - s.limit; over > 0 {
		s.events = append([]pkgaudit.Event(nil), s.events[over:]...)
	}
	return nil
}

// Recent returns retained events, oldest first.
func (s *MemorySink) Recent() []pkgaudit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pkgaudit.Event(nil), s.events...)
}

// ByAction returns retained events with the given action.
func (s *MemorySink) ByAction(action pkgaudit.Action) []pkgaudit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pkgaudit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

package testutil

import (
	"context"
	"sync"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// AuditRecorder captures emitted audit events for assertions.
type AuditRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

// NewAuditLogger returns an audit logger backed by a fresh recorder.
func NewAuditLogger() (*audit.Logger, *AuditRecorder) {
	rec := &AuditRecorder{}
	return audit.NewLogger(nil, rec), rec
}

func (r *AuditRecorder) Emit(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns all captured events in emission order.
func (r *AuditRecorder) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

// ByAction returns the captured events with the given action.
func (r *AuditRecorder) ByAction(action audit.Action) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

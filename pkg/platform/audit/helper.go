package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/privacy"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger provides structured audit logging with optional event emission.
// A nil *Logger discards everything.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
	now        func() time.Time
}

// NewLogger creates an audit logger. emitter may be nil for log-only auditing.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
		now:        time.Now,
	}
}

// Log writes an audit line and emits the event. request_id and the
// anonymized client_ip are taken from ctx.
//
// Recognised attribute keys: principal_id, username, family_id, reason.
//
//	logger.Log(ctx, audit.ActionLoginFailed, "username", name, "reason", "bad_password")
func (l *Logger) Log(ctx context.Context, action Action, attributes ...any) {
	if l == nil {
		return
	}

	requestID := requestcontext.RequestID(ctx)
	clientIP := ""
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		clientIP = privacy.AnonymizeIP(ip)
	}

	if l.textLogger != nil {
		args := append([]any{}, attributes...)
		if requestID != "" {
			args = append(args, "request_id", requestID)
		}
		if clientIP != "" {
			args = append(args, "client_ip", clientIP)
		}
		args = append(args, "event", string(action), "log_type", "audit")
		l.textLogger.InfoContext(ctx, string(action), args...)
	}

	if l.emitter == nil {
		return
	}
	err := l.emitter.Emit(ctx, Event{
		Timestamp:   l.now(),
		Action:      action,
		PrincipalID: extractString(attributes, "principal_id"),
		Subject:     extractString(attributes, "username"),
		ClientIP:    clientIP,
		FamilyID:    extractString(attributes, "family_id"),
		Reason:      extractString(attributes, "reason"),
		RequestID:   requestID,
	})
	if err != nil && l.textLogger != nil {
		l.textLogger.WarnContext(ctx, "failed to emit audit event",
			"error", err,
			"event", string(action),
		)
	}
}

// extractString finds key in a slog-style key/value list.
func extractString(attributes []any, key string) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			switch v := attributes[i+1].(type) {
			case string:
				return v
			case interface{ String() string }:
				return v.String()
			}
		}
	}
	return ""
}

package audit

import "time"

// Action names a security-relevant occurrence.
type Action string

const (
	ActionLoginSucceeded      Action = "auth_login_succeeded"
	ActionLoginFailed         Action = "auth_login_failed"
	ActionLoginLocked         Action = "auth_login_locked"
	ActionLockoutTriggered    Action = "auth_lockout_triggered"
	ActionTokenRotated        Action = "token_rotated"
	ActionTokenReuseDetected  Action = "token_reuse_detected"
	ActionFamilyRevoked       Action = "token_family_revoked"
	ActionSessionRevoked      Action = "session_revoked"
	ActionRateLimitExceeded   Action = "rate_limit_exceeded"
	ActionRateLimitDegraded   Action = "rate_limit_degraded"
	ActionAuthorizationDenied Action = "authorization_denied"
)

// Event is emitted from the security components. It stays transport-agnostic
// so sinks can fan out. ClientIP is always anonymized.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	FamilyID    string    `json:"family_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Key returns the partitioning key: the principal when known, else the
// attempted subject.
func (e Event) Key() string {
	if e.PrincipalID != "" {
		return e.PrincipalID
	}
	return e.Subject
}

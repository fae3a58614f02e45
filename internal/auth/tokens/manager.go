// Package tokens implements the session credential lifecycle: issuing
// access/session pairs, rotating session tokens, detecting replay of rotated
// tokens, and revoking single sessions or whole token families.
//
// All state lives in the shared store:
//
//	session:{jti}         SessionRecord, TTL = session lifetime
//	revoked:{jti}         RevocationMarker, TTL-bounded
//	family:{fid}          set of jtis descended from one login
//	family_revoked:{fid}  written when the family is revoked
//
// A session jti is honorable iff its record exists, the record's hash matches
// the presented token and no marker exists for it.
package tokens

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/metrics"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	jwttoken "github.com/jasonachkar/secure-api-gateway-sub001/internal/jwt_token"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Rotation modes.
const (
	// ModeAccept treats every second presentation of a session token as
	// reuse, including the loser of two simultaneous rotations and a retry
	// after a lost response. The family is revoked.
	ModeAccept = "accept"
	// ModeCAS answers the loser of a simultaneous rotation with
	// concurrent_rotation and leaves the family intact.
	ModeCAS = "cas"
)

// Reasons attached to TokenInvalid errors. They are logged and audited,
// never rendered to clients.
const (
	ReasonReuseDetected      = "token_reuse_detected"
	ReasonFamilyRevoked      = "family_revoked"
	ReasonConcurrentRotation = "concurrent_rotation"
	ReasonUnknownSession     = "unknown_session"
	ReasonWrongType          = "wrong_type"
)

// Store is the subset of the state store the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	SAddEX(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Signer signs and verifies token claims. Satisfied by jwttoken.JWTService.
type Signer interface {
	Sign(claims jwttoken.Claims) (string, error)
	Parse(token string) (*jwttoken.Claims, error)
}

// Config holds token lifetimes and the rotation policy.
type Config struct {
	AccessTTL     time.Duration
	SessionTTL    time.Duration
	RotationGrace time.Duration // lifetime of a rotated marker
	Mode          string        // ModeAccept or ModeCAS
	ReuseGrace    time.Duration // rotated markers younger than this are not treated as reuse
}

// DefaultConfig returns the default lifetimes.
func DefaultConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		SessionTTL:    7 * 24 * time.Hour,
		RotationGrace: time.Hour,
		Mode:          ModeAccept,
	}
}

// Manager is safe for concurrent use; it holds no per-request state.
type Manager struct {
	store   Store
	signer  Signer
	config  Config
	logger  *slog.Logger
	auditor *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithAuditLogger(auditor *audit.Logger) Option {
	return func(m *Manager) {
		m.auditor = auditor
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithClock overrides the time source. Use the same clock for the signer.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(store Store, signer Signer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	if signer == nil {
		return nil, errors.New("token signer is required")
	}
	m := &Manager{
		store:  store,
		signer: signer,
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	cfg := m.config
	switch {
	case cfg.AccessTTL <= 0 || cfg.SessionTTL <= 0 || cfg.RotationGrace <= 0:
		return nil, fmt.Errorf("token lifetimes must be positive")
	case cfg.Mode != ModeAccept && cfg.Mode != ModeCAS:
		return nil, fmt.Errorf("unknown rotation mode %q", cfg.Mode)
	case cfg.ReuseGrace < 0:
		return nil, fmt.Errorf("reuse grace must not be negative")
	}
	return m, nil
}

// Issue creates a credential pair in a new family.
func (m *Manager) Issue(ctx context.Context, principal *id.Principal) (*models.CredentialPair, error) {
	if principal == nil || principal.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInternal, "principal is required")
	}
	return m.issue(ctx, principal, id.NewFamilyID())
}

func (m *Manager) issue(ctx context.Context, principal *id.Principal, familyID id.FamilyID) (*models.CredentialPair, error) {
	now := m.now()
	accessJTI := id.NewTokenID()
	sessionJTI := id.NewTokenID()
	accessExp := now.Add(m.config.AccessTTL)
	sessionExp := now.Add(m.config.SessionTTL)

	accessToken, err := m.signer.Sign(buildClaims(principal, accessJTI, jwttoken.TypeAccess, now, accessExp))
	if err != nil {
		return nil, err
	}
	sessionToken, err := m.signer.Sign(buildClaims(principal, sessionJTI, jwttoken.TypeSession, now, sessionExp))
	if err != nil {
		return nil, err
	}

	record := models.SessionRecord{
		JTI:            sessionJTI,
		PrincipalID:    principal.ID,
		CredentialHash: hashToken(sessionToken),
		FamilyID:       familyID,
		CreatedAt:      now,
		ExpiresAt:      sessionExp,
		LastUsedAt:     now,
		Device:         requestcontext.Device(ctx),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode session record")
	}
	if err := m.store.SetEX(ctx, sessionKey(sessionJTI), string(raw), m.config.SessionTTL); err != nil {
		return nil, storeError(err, "failed to save session")
	}
	if err := m.store.SAddEX(ctx, familyKey(familyID), m.familyRetention(), sessionJTI.String()); err != nil {
		return nil, storeError(err, "failed to record token family")
	}

	if m.metrics != nil {
		m.metrics.IncrementTokensIssued()
	}
	return &models.CredentialPair{
		AccessToken:      accessToken,
		SessionToken:     sessionToken,
		AccessExpiresAt:  accessExp,
		SessionExpiresAt: sessionExp,
		FamilyID:         familyID,
		SessionID:        sessionJTI,
	}, nil
}

// Rotate exchanges a session token for a new pair in the same family. The
// presented token can never be honored again. Presenting a token that was
// already rotated, or whose record does not match, revokes the whole family.
func (m *Manager) Rotate(ctx context.Context, presented string) (*models.CredentialPair, error) {
	claims, err := m.signer.Parse(presented)
	if err != nil {
		m.recordRotation("rejected")
		return nil, err
	}
	if claims.Type != jwttoken.TypeSession {
		m.recordRotation("rejected")
		return nil, invalid(ReasonWrongType)
	}
	jti := id.TokenID(claims.ID)

	if err := m.checkMarker(ctx, jti, claims.Subject); err != nil {
		return nil, err
	}

	record, raw, err := m.loadRecord(ctx, jti)
	if errors.Is(err, statestore.ErrNotFound) {
		m.recordRotation("rejected")
		return nil, invalid(ReasonUnknownSession)
	}
	if err != nil {
		return nil, err
	}

	if !hashMatches(record.CredentialHash, presented) || record.PrincipalID.String() != claims.Subject {
		m.reuseDetected(ctx, record.FamilyID, claims.Subject, "credential_mismatch")
		return nil, invalid(ReasonReuseDetected)
	}

	revoked, err := m.store.Exists(ctx, familyRevokedKey(record.FamilyID))
	if err != nil {
		return nil, storeError(err, "failed to check token family")
	}
	if revoked {
		m.recordRotation("rejected")
		return nil, invalid(ReasonFamilyRevoked)
	}

	if err := m.consume(ctx, jti, record, raw, claims); err != nil {
		return nil, err
	}

	principal := id.NewPrincipal(id.PrincipalID(claims.Subject), claims.Name, claims.Roles, claims.Permissions)
	pair, err := m.issue(ctx, principal, record.FamilyID)
	if err != nil {
		return nil, err
	}

	m.recordRotation("rotated")
	m.auditor.Log(ctx, audit.ActionTokenRotated,
		"principal_id", claims.Subject,
		"family_id", record.FamilyID.String(),
	)
	return pair, nil
}

// checkMarker classifies a presented jti that already carries a revocation marker.
func (m *Manager) checkMarker(ctx context.Context, jti id.TokenID, subject string) error {
	marker, err := m.loadMarker(ctx, jti)
	if errors.Is(err, statestore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch marker.Kind {
	case models.MarkerRotated:
		if m.config.ReuseGrace > 0 && m.now().Sub(marker.RevokedAt) < m.config.ReuseGrace {
			m.recordRotation("concurrent")
			return invalid(ReasonConcurrentRotation)
		}
		m.reuseDetected(ctx, marker.FamilyID, subject, "rotated_token_replayed")
		return invalid(ReasonReuseDetected)
	case models.MarkerFamilyRevoked:
		m.recordRotation("rejected")
		return invalid(ReasonFamilyRevoked)
	default:
		m.recordRotation("rejected")
		return dErrors.NewWithReason(dErrors.CodeTokenRevoked, "token revoked", string(marker.Kind))
	}
}

// consume removes the presented jti's record with a compare-and-delete and
// marks the jti rotated. Only the caller that deletes the record may issue a
// new pair; in accept mode a lost compare is answered as reuse.
func (m *Manager) consume(ctx context.Context, jti id.TokenID, record *models.SessionRecord, raw string, claims *jwttoken.Claims) error {
	ok, err := m.store.CompareAndDelete(ctx, sessionKey(jti), raw)
	if err != nil {
		return storeError(err, "failed to consume session")
	}
	if !ok {
		if m.config.Mode == ModeCAS {
			m.recordRotation("concurrent")
			return invalid(ReasonConcurrentRotation)
		}
		m.reuseDetected(ctx, record.FamilyID, claims.Subject, "concurrent_rotation")
		return invalid(ReasonReuseDetected)
	}

	ttl := m.config.RotationGrace
	if claims.ExpiresAt != nil {
		ttl = max(ttl, claims.ExpiresAt.Sub(m.now()))
	}
	return m.writeMarker(ctx, jti, models.MarkerRotated, record.FamilyID, ttl)
}

// Revoke makes jti unusable for ttl and removes its record. Revoking an
// already revoked jti is a no-op; an existing marker is never downgraded.
func (m *Manager) Revoke(ctx context.Context, jti id.TokenID, ttl time.Duration) error {
	if jti.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "token id is required")
	}
	if ttl <= 0 {
		ttl = m.config.SessionTTL
	}

	exists, err := m.store.Exists(ctx, markerKey(jti))
	if err != nil {
		return storeError(err, "failed to check revocation")
	}
	if !exists {
		var familyID id.FamilyID
		if record, _, err := m.loadRecord(ctx, jti); err == nil {
			familyID = record.FamilyID
		}
		if err := m.writeMarker(ctx, jti, models.MarkerRevoked, familyID, ttl); err != nil {
			return err
		}
	}
	if err := m.store.Del(ctx, sessionKey(jti)); err != nil {
		return storeError(err, "failed to delete session")
	}
	if !exists && m.metrics != nil {
		m.metrics.IncrementSessionsRevoked()
	}
	return nil
}

// RevokeFamily revokes every jti ever issued in the family and blocks further
// rotation inside it. Every member is attempted even if one fails.
func (m *Manager) RevokeFamily(ctx context.Context, familyID id.FamilyID) error {
	if familyID.IsNil() {
		return nil
	}
	retention := m.familyRetention()
	if err := m.store.SetEX(ctx, familyRevokedKey(familyID), m.now().UTC().Format(time.RFC3339Nano), retention); err != nil {
		return storeError(err, "failed to revoke token family")
	}

	members, err := m.store.SMembers(ctx, familyKey(familyID))
	if err != nil {
		return storeError(err, "failed to list token family")
	}

	var errs []error
	for _, member := range members {
		jti := id.TokenID(member)
		if err := m.writeMarker(ctx, jti, models.MarkerFamilyRevoked, familyID, retention); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.store.Del(ctx, sessionKey(jti)); err != nil {
			errs = append(errs, storeError(err, "failed to delete session"))
		}
	}
	if m.metrics != nil {
		m.metrics.IncrementFamiliesRevoked()
	}
	m.auditor.Log(ctx, audit.ActionFamilyRevoked,
		"family_id", familyID.String(),
		"members", len(members),
	)
	return errors.Join(errs...)
}

// IsRevoked reports whether jti carries a revocation marker. A store failure
// reports true.
func (m *Manager) IsRevoked(ctx context.Context, jti id.TokenID) bool {
	exists, err := m.store.Exists(ctx, markerKey(jti))
	if err != nil {
		m.logger.ErrorContext(ctx, "revocation check failed, treating token as revoked",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return true
	}
	return exists
}

// VerifyAccess checks an access token's signature, expiry and type. Access
// tokens are not tracked server side; they stay valid until they expire.
func (m *Manager) VerifyAccess(_ context.Context, token string) (*id.Principal, id.TokenID, error) {
	claims, err := m.signer.Parse(token)
	if err != nil {
		return nil, "", err
	}
	if claims.Type != jwttoken.TypeAccess {
		return nil, "", invalid(ReasonWrongType)
	}
	principal := id.NewPrincipal(id.PrincipalID(claims.Subject), claims.Name, claims.Roles, claims.Permissions)
	return principal, id.TokenID(claims.ID), nil
}

// Logout revokes the presented session token. Invalid or expired tokens are
// ignored; the error is only for logging.
func (m *Manager) Logout(ctx context.Context, sessionToken string) error {
	claims, err := m.signer.Parse(sessionToken)
	if err != nil {
		return err
	}
	if claims.Type != jwttoken.TypeSession {
		return invalid(ReasonWrongType)
	}
	ttl := m.config.SessionTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(m.now())
	}
	if err := m.Revoke(ctx, id.TokenID(claims.ID), max(ttl, time.Second)); err != nil {
		return err
	}
	m.auditor.Log(ctx, audit.ActionSessionRevoked,
		"principal_id", claims.Subject,
		"reason", "logout",
	)
	return nil
}

func (m *Manager) reuseDetected(ctx context.Context, familyID id.FamilyID, subject, cause string) {
	if m.metrics != nil {
		m.metrics.IncrementReuseDetections()
	}
	m.recordRotation("reuse")
	m.logger.WarnContext(ctx, "session token reuse detected, revoking family",
		"principal_id", subject,
		"family_id", familyID.String(),
		"cause", cause,
		"request_id", requestcontext.RequestID(ctx),
	)
	m.auditor.Log(ctx, audit.ActionTokenReuseDetected,
		"principal_id", subject,
		"family_id", familyID.String(),
		"reason", cause,
	)
	if err := m.RevokeFamily(ctx, familyID); err != nil {
		m.logger.ErrorContext(ctx, "failed to revoke token family",
			"family_id", familyID.String(),
			"error", err,
		)
	}
}

func (m *Manager) loadRecord(ctx context.Context, jti id.TokenID) (*models.SessionRecord, string, error) {
	raw, err := m.store.Get(ctx, sessionKey(jti))
	if errors.Is(err, statestore.ErrNotFound) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", storeError(err, "failed to load session")
	}
	var record models.SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "corrupt session record")
	}
	return &record, raw, nil
}

func (m *Manager) loadMarker(ctx context.Context, jti id.TokenID) (*models.RevocationMarker, error) {
	raw, err := m.store.Get(ctx, markerKey(jti))
	if errors.Is(err, statestore.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storeError(err, "failed to check revocation")
	}
	var marker models.RevocationMarker
	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		// unreadable markers still block the token
		return &models.RevocationMarker{Kind: models.MarkerRevoked}, nil
	}
	return &marker, nil
}

func (m *Manager) writeMarker(ctx context.Context, jti id.TokenID, kind models.MarkerKind, familyID id.FamilyID, ttl time.Duration) error {
	raw, err := json.Marshal(models.RevocationMarker{Kind: kind, FamilyID: familyID, RevokedAt: m.now()})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode revocation marker")
	}
	if err := m.store.SetEX(ctx, markerKey(jti), string(raw), ttl); err != nil {
		return storeError(err, "failed to write revocation marker")
	}
	return nil
}

// familyRetention outlives every member session so a replayed member can
// still be matched to its family.
func (m *Manager) familyRetention() time.Duration {
	return m.config.SessionTTL + m.config.RotationGrace
}

func (m *Manager) recordRotation(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordRotation(outcome)
	}
}

func buildClaims(p *id.Principal, jti id.TokenID, typ string, now, exp time.Time) jwttoken.Claims {
	return jwttoken.Claims{
		Name:        p.DisplayName,
		Roles:       p.Roles,
		Permissions: p.Permissions,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func hashMatches(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(hashToken(presented))) == 1
}

func invalid(reason string) error {
	return dErrors.NewWithReason(dErrors.CodeTokenInvalid, "invalid token", reason)
}

func storeError(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

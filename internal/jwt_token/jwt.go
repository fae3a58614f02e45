package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeSession = "session"
)

// Claims is the payload of both access and session tokens.
type Claims struct {
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Type        string   `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies gateway tokens with a single key.
type JWTService struct {
	key    Key
	issuer string
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures the JWTService.
type Option func(*JWTService)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// WithLeeway tolerates clock skew when checking exp and iat.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) {
		s.leeway = d
	}
}

func NewJWTService(key Key, issuer string, opts ...Option) *JWTService {
	s := &JWTService{
		key:    key,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Pinning the method rejects "none" and any alg swap.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{key.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// Issuer returns the configured "iss" value.
func (s *JWTService) Issuer() string {
	return s.issuer
}

// Sign stamps the issuer on claims and signs them. The caller sets the
// subject, jti, type and timestamps.
func (s *JWTService) Sign(claims Claims) (string, error) {
	claims.Issuer = s.issuer
	token := jwt.NewWithClaims(s.key.method, claims)
	signed, err := token.SignedString(s.key.signKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Parse verifies signature, algorithm, issuer and expiry. An expired token
// yields CodeTokenExpired; every other failure yields the same
// CodeTokenInvalid error so callers cannot tell why a token was rejected.
func (s *JWTService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errInvalidToken("empty")
	}

	claims := new(Claims)
	parsed, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key.verifyKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.NewWithReason(dErrors.CodeTokenExpired, "token expired", "expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, errInvalidToken("signature")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errInvalidToken("malformed")
		default:
			return nil, errInvalidToken("claims")
		}
	}
	if !parsed.Valid {
		return nil, errInvalidToken("signature")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errInvalidToken("claims")
	}
	return claims, nil
}

func errInvalidToken(reason string) error {
	return dErrors.NewWithReason(dErrors.CodeTokenInvalid, "invalid token", reason)
}

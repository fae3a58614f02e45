package jwttoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

const testSecret = "test-signing-key-0123456789abcdef"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newHMACService(t *testing.T, now *time.Time) *JWTService {
	t.Helper()
	key, err := NewHMACKey([]byte(testSecret))
	require.NoError(t, err)
	return NewJWTService(key, "test-issuer", WithClock(func() time.Time { return *now }))
}

func testClaims(now time.Time, typ string, ttl time.Duration) Claims {
	return Claims{
		Name:        "Alice",
		Roles:       []string{"viewer"},
		Permissions: []string{"profile:read", "read:reports"},
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestSignAndParse(t *testing.T) {
	now := baseTime
	svc := newHMACService(t, &now)

	in := testClaims(now, TypeAccess, 15*time.Minute)
	token, err := svc.Sign(in)
	require.NoError(t, err)

	out, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", out.Subject)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "test-issuer", out.Issuer)
	assert.Equal(t, TypeAccess, out.Type)
	assert.Equal(t, []string{"profile:read", "read:reports"}, out.Permissions)
	assert.Equal(t, []string{"viewer"}, out.Roles)
	assert.Equal(t, "Alice", out.Name)
}

func TestParseExpired(t *testing.T) {
	now := baseTime
	svc := newHMACService(t, &now)

	token, err := svc.Sign(testClaims(now, TypeAccess, time.Minute))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Parse(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func TestParseRejections(t *testing.T) {
	now := baseTime
	svc := newHMACService(t, &now)
	valid, err := svc.Sign(testClaims(now, TypeAccess, time.Minute))
	require.NoError(t, err)

	otherKey, err := NewHMACKey([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	foreign, err := NewJWTService(otherKey, "test-issuer").Sign(testClaims(now, TypeAccess, time.Minute))
	require.NoError(t, err)

	baseKey, err := NewHMACKey([]byte(testSecret))
	require.NoError(t, err)
	wrongIssuer, err := NewJWTService(baseKey, "someone-else").Sign(testClaims(now, TypeAccess, time.Minute))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims(now, TypeAccess, time.Minute)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry := testClaims(now, TypeAccess, time.Minute)
	noExpiry.ExpiresAt = nil
	withoutExp, err := svc.Sign(noExpiry)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"foreign key":    foreign,
		"wrong issuer":   wrongIssuer,
		"alg none":       unsigned,
		"missing exp":    withoutExp,
		"tampered claim": tampered,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Parse(token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenInvalid))
			assert.Equal(t, "invalid token", err.Error(), "rejections are indistinguishable to the caller")
		})
	}
}

func TestNewHMACKeyRejectsShortSecret(t *testing.T) {
	_, err := NewHMACKey([]byte("short"))
	require.Error(t, err)
}

func TestEdDSAKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	key, err := ParsePrivateKeyPEM("EdDSA", pemBytes)
	require.NoError(t, err)
	assert.Equal(t, "EdDSA", key.Alg())

	now := baseTime
	svc := NewJWTService(key, "gw", WithClock(func() time.Time { return now }))
	token, err := svc.Sign(testClaims(now, TypeSession, time.Hour))
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, TypeSession, claims.Type)

	t.Run("hmac service rejects an EdDSA token", func(t *testing.T) {
		hmacNow := baseTime
		_, err := newHMACService(t, &hmacNow).Parse(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})

	t.Run("rsa algorithm needs an rsa key", func(t *testing.T) {
		_, err := ParsePrivateKeyPEM("RS256", pemBytes)
		require.Error(t, err)
	})
}

func TestRS256KeyFromFile(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	path := filepath.Join(t.TempDir(), "rsa.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	key, err := LoadKey("RS256", "", path)
	require.NoError(t, err)
	assert.Equal(t, "RS256", key.Alg())

	now := baseTime
	svc := NewJWTService(key, "gw", WithClock(func() time.Time { return now }))
	token, err := svc.Sign(testClaims(now, TypeAccess, time.Minute))
	require.NoError(t, err)
	_, err = svc.Parse(token)
	require.NoError(t, err)

	_, err = LoadKey("RS256", "", filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestParsePrivateKeyPEMRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKeyPEM("EdDSA", []byte("not pem"))
	require.Error(t, err)
}

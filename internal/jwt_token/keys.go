package jwttoken

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACKeyBytes is the shortest accepted HS256 secret.
const MinHMACKeyBytes = 32

// Key pairs a signing method with its signing and verification keys.
type Key struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// Alg returns the JWT "alg" header value.
func (k Key) Alg() string {
	if k.method == nil {
		return ""
	}
	return k.method.Alg()
}

// NewHMACKey builds an HS256 key from a shared secret.
func NewHMACKey(secret []byte) (Key, error) {
	if len(secret) < MinHMACKeyBytes {
		return Key{}, fmt.Errorf("jwt: HS256 secret must be at least %d bytes", MinHMACKeyBytes)
	}
	return Key{method: jwt.SigningMethodHS256, signKey: secret, verifyKey: secret}, nil
}

// ParsePrivateKeyPEM builds an RS256 or EdDSA key from a PEM private key.
// RSA keys may be PKCS1 or PKCS8; Ed25519 keys must be PKCS8.
func ParsePrivateKeyPEM(alg string, pemBytes []byte) (Key, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return Key{}, errors.New("jwt: invalid PEM block")
	}

	var priv any
	var err error
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return Key{}, fmt.Errorf("jwt: unsupported PEM type %q", block.Type)
	}
	if err != nil {
		return Key{}, fmt.Errorf("jwt: parse private key: %w", err)
	}

	switch strings.ToUpper(alg) {
	case "RS256":
		key, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return Key{}, errors.New("jwt: RS256 requires an RSA private key")
		}
		if key.N.BitLen() < 2048 {
			return Key{}, errors.New("jwt: RSA key must be at least 2048 bits")
		}
		return Key{method: jwt.SigningMethodRS256, signKey: key, verifyKey: &key.PublicKey}, nil
	case "EDDSA":
		key, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return Key{}, errors.New("jwt: EdDSA requires an Ed25519 private key")
		}
		return Key{method: jwt.SigningMethodEdDSA, signKey: key, verifyKey: key.Public()}, nil
	default:
		return Key{}, fmt.Errorf("jwt: unsupported algorithm %q", alg)
	}
}

// LoadKey resolves the configured algorithm to a Key. HS256 uses secret;
// RS256 and EdDSA read a PEM private key from keyFile.
func LoadKey(alg, secret, keyFile string) (Key, error) {
	if strings.ToUpper(alg) == "HS256" {
		return NewHMACKey([]byte(secret))
	}
	pemBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return Key{}, fmt.Errorf("jwt: read private key: %w", err)
	}
	return ParsePrivateKeyPEM(alg, pemBytes)
}

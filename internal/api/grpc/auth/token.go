// Package auth verifies KeyBazaar access tokens and resolves the caller
// account for registry RPCs. Tokens are EdDSA-signed JWTs minted by the
// account-key tool; the subject claim is the caller's account id.
package auth

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/keybazaar/internal/platform/errors"
)

// Default issuer and audience claims for access tokens.
const (
	DefaultIssuer   = "keybazaar"
	DefaultAudience = "keybazaar-registry"
)

// VerifierConfig defines how access tokens are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// accessClaims is the claims shape used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
}

// Verifier validates access tokens.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier creates a Verifier after validating its configuration.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("access token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify checks an access token and returns the caller account.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "access token is required")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.cfg.Now),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthenticated, "verify access token", err)
	}
	if parsed.Subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "access token subject is required")
	}
	return parsed.Subject, nil
}

// MinterConfig defines how access tokens are minted.
type MinterConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	Now      func() time.Time
}

// Minter signs access tokens. It lives in this package so the
// account-key tool and tests mint tokens the verifier accepts.
type Minter struct {
	cfg MinterConfig
}

// NewMinter creates a Minter after validating its configuration.
func NewMinter(cfg MinterConfig) (*Minter, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("access token private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Minter{cfg: cfg}, nil
}

// Mint signs an access token for account with the given lifetime.
func (m *Minter) Mint(account, tokenID string, lifetime time.Duration) (string, error) {
	if account == "" {
		return "", fmt.Errorf("account is required")
	}
	if lifetime <= 0 {
		return "", fmt.Errorf("lifetime must be positive")
	}
	now := m.cfg.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			Subject:   account,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(m.cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

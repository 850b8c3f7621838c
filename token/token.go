// Package token issues and verifies the three signed token kinds used
// by the engine: short-lived access tokens, long-lived refresh tokens,
// and pending tokens that bridge the two-factor handshake.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token with the single operation it is valid for.
// Verification fails when the presented purpose does not match.
type Purpose string

const (
	PurposeAccess     Purpose = "access"
	PurposeRefresh    Purpose = "refresh"
	PurposePending2FA Purpose = "pending_2fa"
)

var (
	// ErrExpired is returned for structurally valid tokens past their expiry.
	ErrExpired = errors.New("token expired")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrWrongPurpose is returned when a token is presented to an
	// operation it was not issued for.
	ErrWrongPurpose = errors.New("token purpose mismatch")
	// ErrMalformed covers everything else a parser can reject.
	ErrMalformed = errors.New("token malformed")
)

// Claims is the payload carried by every token the manager issues.
// Subject holds the user ID and ID holds the jti used by revocation.
type Claims struct {
	Email     string  `json:"email,omitempty"`
	Role      string  `json:"role,omitempty"`
	Purpose   Purpose `json:"purpose"`
	SessionID string  `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the subject material baked into an issued token.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// Config holds signing material and issuance parameters.
//
// AccessSecret signs access and pending tokens; RefreshSecret signs
// refresh tokens. With the "ed25519" method the secrets are 32-byte
// seeds, otherwise they are HMAC keys.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PendingTTL time.Duration

	SigningMethod string
	AccessSecret  []byte
	RefreshSecret []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Manager signs and verifies tokens.
type Manager struct {
	cfg    Config
	method jwt.SigningMethod

	accessSignKey  any
	accessVerify   any
	refreshSignKey any
	refreshVerify  any

	accessParser  *jwt.Parser
	refreshParser *jwt.Parser

	now func() time.Time
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.PendingTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: signing secrets are required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token: issuer and audience are required")
	}

	m := &Manager{cfg: cfg, now: time.Now}

	switch cfg.SigningMethod {
	case "", "hs256":
		m.method = jwt.SigningMethodHS256
		m.accessSignKey = cfg.AccessSecret
		m.accessVerify = cfg.AccessSecret
		m.refreshSignKey = cfg.RefreshSecret
		m.refreshVerify = cfg.RefreshSecret
	case "ed25519":
		if len(cfg.AccessSecret) != ed25519.SeedSize || len(cfg.RefreshSecret) != ed25519.SeedSize {
			return nil, fmt.Errorf("token: ed25519 secrets must be %d-byte seeds", ed25519.SeedSize)
		}
		m.method = jwt.SigningMethodEdDSA
		accessKey := ed25519.NewKeyFromSeed(cfg.AccessSecret)
		refreshKey := ed25519.NewKeyFromSeed(cfg.RefreshSecret)
		m.accessSignKey = accessKey
		m.accessVerify = accessKey.Public()
		m.refreshSignKey = refreshKey
		m.refreshVerify = refreshKey.Public()
	default:
		return nil, fmt.Errorf("token: unsupported signing method %q", cfg.SigningMethod)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	m.accessParser = jwt.NewParser(opts...)
	m.refreshParser = jwt.NewParser(opts...)

	return m, nil
}

// IssueAccess signs an access token for id.
func (m *Manager) IssueAccess(id Identity) (string, error) {
	return m.issue(id, PurposeAccess, m.cfg.AccessTTL, m.accessSignKey)
}

// IssueRefresh signs a refresh token for id.
func (m *Manager) IssueRefresh(id Identity) (string, error) {
	return m.issue(id, PurposeRefresh, m.cfg.RefreshTTL, m.refreshSignKey)
}

// IssuePending signs a short-lived pending token for the two-factor
// handshake. It carries no role so it cannot pass as an access token
// even under a purpose-check bug.
func (m *Manager) IssuePending(id Identity) (string, error) {
	id.Role = ""
	return m.issue(id, PurposePending2FA, m.cfg.PendingTTL, m.accessSignKey)
}

func (m *Manager) issue(id Identity, purpose Purpose, ttl time.Duration, key any) (string, error) {
	now := m.now()
	claims := Claims{
		Email:     id.Email,
		Role:      id.Role,
		Purpose:   purpose,
		SessionID: id.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			Subject:   id.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString, checks its signature and registered
// claims, and requires the embedded purpose to equal purpose.
func (m *Manager) Verify(tokenString string, purpose Purpose) (Claims, error) {
	parser := m.accessParser
	verifyKey := m.accessVerify
	if purpose == PurposeRefresh {
		parser = m.refreshParser
		verifyKey = m.refreshVerify
	}

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return verifyKey, nil
	})
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrWrongPurpose
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

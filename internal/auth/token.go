package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenValidity is the session token lifetime.
const DefaultTokenValidity = 24 * time.Hour

// PrivilegeChecker answers whether a handle is on the privileged allow-list.
// The flag is resolved once, at token issuance; validation trusts the value
// embedded in the token until it expires.
type PrivilegeChecker interface {
	IsPrivileged(username string) bool
}

// Claims is the session token payload.
type Claims struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AvatarURL    string `json:"avatar_url"`
	IsPrivileged bool   `json:"is_privileged"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates signed, self-contained session tokens.
// Both operations are pure CPU-bound computations and safe for concurrent
// use without coordination.
type TokenManager struct {
	secret   []byte
	validity time.Duration
	checker  PrivilegeChecker

	// now is the clock source for issuance and expiry checks. Tests inject
	// a fixed clock here.
	now func() time.Time
}

// NewTokenManager builds a manager signing with the given secret. A
// non-positive validity falls back to DefaultTokenValidity.
func NewTokenManager(secret string, validity time.Duration, checker PrivilegeChecker) *TokenManager {
	if validity <= 0 {
		validity = DefaultTokenValidity
	}
	return &TokenManager{
		secret:   []byte(secret),
		validity: validity,
		checker:  checker,
		now:      time.Now,
	}
}

// CreateToken signs a session token for the given profile attributes. The
// privileged flag is derived from the allow-list here and nowhere else.
func (tm *TokenManager) CreateToken(userID int64, username, name, email, avatarURL string) (string, error) {
	now := tm.now()
	claims := &Claims{
		UserID:       userID,
		Username:     username,
		Name:         name,
		Email:        email,
		AvatarURL:    avatarURL,
		IsPrivileged: tm.checker != nil && tm.checker.IsPrivileged(username),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.validity)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken decodes and verifies a token string. A leading "Bearer "
// prefix is stripped if present.
//
// Malformed, tampered, and expired tokens all yield the same (nil, false)
// outcome so callers cannot distinguish the failure mode.
func (tm *TokenManager) ValidateToken(tokenStr string) (*Claims, bool) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	if tokenStr == "" {
		return nil, false
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, false
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, false
	}
	return claims, true
}

// ExtractIdentity projects validated claims onto an Identity. No validation
// happens here.
func ExtractIdentity(claims *Claims) *Identity {
	return &Identity{
		UserID:       claims.UserID,
		Username:     claims.Username,
		Name:         claims.Name,
		Email:        claims.Email,
		AvatarURL:    claims.AvatarURL,
		IsPrivileged: claims.IsPrivileged,
	}
}

// Authenticate validates a bearer credential and returns the identity it
// asserts, or nil when no identity could be established.
func (tm *TokenManager) Authenticate(credential string) *Identity {
	claims, ok := tm.ValidateToken(credential)
	if !ok {
		return nil
	}
	return ExtractIdentity(claims)
}

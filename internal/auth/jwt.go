// Package auth issues and verifies the short-lived JWT access token and
// manages opaque, hashed refresh tokens backed by the Persistence Gateway.
//
// Access tokens are stateless HS256 JWTs; revocation is not tracked for them
// (the short TTL bounds exposure). Refresh tokens are the opposite: a random
// opaque string whose bcrypt hash lives in the refresh_tokens table, so
// logout/revocation works without needing a session store alongside Redis.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/obsplane/observability/internal/models"
)

// Claims is the JWT payload for an access token.
type Claims struct {
	UserID int         `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies access tokens with a single HMAC secret.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewJWTManager constructs a manager bound to the configured secret/TTL.
func NewJWTManager(secret string, issuer string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), issuer: issuer, accessTTL: accessTTL}
}

// GenerateAccessToken signs a new access token for the given user.
func (m *JWTManager) GenerateAccessToken(user models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessTTL)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses and verifies a bearer token, rejecting any
// signing method other than the configured HMAC algorithm to prevent an
// algorithm-substitution attack.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scrutin/internal/services"
)

const issuer = "scrutind"

// Claims identifies the bearer of a store token.
type Claims struct {
	Role     string `json:"role,omitempty"`
	Precinct string `json:"precinct,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject valid for ttl. A non-positive ttl yields a
// token without expiry.
func Issue(secret, subject, role, precinct string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("issue token: secret required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("issue token: subject required")
	}
	claims := Claims{
		Role:     role,
		Precinct: precinct,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an HS256 token. Failures are tagged with
// services.ErrAuthenticationRequired.
func Verify(secret, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.Wrap(services.ErrAuthenticationRequired, "auth", "verify", "missing token", nil)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, services.Wrap(services.ErrAuthenticationRequired, "auth", "verify", "invalid token", err)
	}
	return claims, nil
}

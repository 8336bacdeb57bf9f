// Package auth guards the control API with HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Scope string

const (
	// ScopeRead only allows safe methods.
	ScopeRead    Scope = "read"
	ScopeControl Scope = "control"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeRead, ScopeControl:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

var ErrStaleToken = errors.New("token revoked")

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

type Claims struct {
	Client     string `json:"client"`
	Scope      Scope  `json:"scope"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// Enabled reports whether a secret is configured. Without one the API is
// open, which is only meant for a daemon bound to localhost.
func (ts TokenService) Enabled() bool {
	return len(ts.Secret) > 0
}

func (ts TokenService) Sign(client string, scope Scope, generation int) (string, time.Time, error) {
	if !ts.Enabled() {
		return "", time.Time{}, errors.New("sign token: no secret configured")
	}
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := Claims{
		Client:     client,
		Scope:      scope,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   client,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	}, jwt.WithIssuer(ts.Issuer))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if _, err := ParseScope(string(claims.Scope)); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// Package auth verifies the bearer token peers present at connect against
// the configured auth.token, and issues/validates short-lived JWTs for the
// HTTP media-serving surface so a signed link can be handed to a channel
// adapter without exposing the static token.
//
// Uses golang-jwt/v5 (HS256, RegisteredClaims) generalized from per-user
// sessions to per-media-object grants.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// ErrAuthDisabled indicates no auth.token is configured — connect
// validation then accepts any bearer value (or none).
var ErrAuthDisabled = errors.New("auth: disabled")

// Verifier checks the static bearer token presented at connect.
type Verifier struct {
	token string
}

// NewVerifier builds a Verifier from the configured auth.token. An empty
// token disables verification (every connect is accepted).
func NewVerifier(token string) *Verifier {
	return &Verifier{token: strings.TrimSpace(token)}
}

// Check validates presented against the configured token in constant time.
// When no token is configured, Check always succeeds.
func (v *Verifier) Check(presented string) error {
	if v.token == "" {
		return nil
	}
	presented = strings.TrimSpace(strings.TrimPrefix(presented, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(v.token)) != 1 {
		return &models.RPCError{Code: 401, Message: "invalid auth token"}
	}
	return nil
}

// MediaClaims identifies the media object a signed grant authorizes.
type MediaClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// MediaGrantor signs and verifies short-lived media-access tokens.
type MediaGrantor struct {
	secret []byte
	ttl    time.Duration
}

// NewMediaGrantor builds a grantor with the given HMAC secret and grant
// lifetime.
func NewMediaGrantor(secret string, ttl time.Duration) *MediaGrantor {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MediaGrantor{secret: []byte(secret), ttl: ttl}
}

// Grant issues a signed token scoped to one object key.
func (g *MediaGrantor) Grant(key string) (string, error) {
	if len(g.secret) == 0 {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := MediaClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Verify parses a grant token and returns the object key it authorizes.
func (g *MediaGrantor) Verify(raw string) (string, error) {
	if len(g.secret) == 0 {
		return "", ErrAuthDisabled
	}
	var claims MediaClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid media grant: %w", err)
	}
	return claims.Key, nil
}

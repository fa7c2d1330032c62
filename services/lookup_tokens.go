package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	lookupTokenIssuer   = "servicehub-api"
	lookupTokenAudience = "my-requests"
)

type lookupClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// LookupTokens issues the signed token a customer uses to list their own
// requests, so knowing a phone number alone is not enough
type LookupTokens struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewLookupTokens creates an HS256 issuer. An empty secret gets a random
// one, which makes tokens unusable across restarts.
func NewLookupTokens(secret string, ttl time.Duration, clock Clock) (*LookupTokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate lookup token secret: %w", err)
		}
	}
	return &LookupTokens{secret: key, ttl: ttl, clock: clock}, nil
}

// Issue signs a token for the identity
func (t *LookupTokens) Issue(identity ContactIdentity) (string, error) {
	n := identity.Normalized()
	now := t.clock.Now()

	claims := lookupClaims{
		Email: n.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    lookupTokenIssuer,
			Subject:   n.Phone,
			Audience:  jwt.ClaimStrings{lookupTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign lookup token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the identity it was issued for
func (t *LookupTokens) Parse(token string) (ContactIdentity, error) {
	var claims lookupClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(lookupTokenIssuer),
		jwt.WithAudience(lookupTokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return ContactIdentity{}, &ValidationError{Fields: map[string]string{"token": "invalid or expired lookup token"}}
	}

	identity := ContactIdentity{Phone: claims.Subject, Email: claims.Email}
	if identity.IsZero() {
		return ContactIdentity{}, &ValidationError{Fields: map[string]string{"token": "lookup token carries no identity"}}
	}
	return identity, nil
}

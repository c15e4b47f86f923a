// Package identity verifies bearer tokens minted by the external identity
// provider. Sign-in itself happens elsewhere.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"milaf-storefront/internal/domain"
)

type Principal struct {
	UserID string
	Email  string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	leeway time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), leeway: 30 * time.Second}
}

// Verify checks an HS256 token and its expiry and returns the subject.
func (v *Verifier) Verify(token string) (Principal, error) {
	if token == "" {
		return Principal{}, domain.ErrUnauthenticated
	}
	if len(v.secret) == 0 {
		return Principal{}, fmt.Errorf("identity: no verification secret configured: %w", domain.ErrUnauthenticated)
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, fmt.Errorf("identity: token expired: %w", domain.ErrUnauthenticated)
		}
		return Principal{}, fmt.Errorf("identity: %v: %w", err, domain.ErrUnauthenticated)
	}
	if !parsed.Valid || c.Subject == "" {
		return Principal{}, fmt.Errorf("identity: token has no subject: %w", domain.ErrUnauthenticated)
	}
	return Principal{UserID: c.Subject, Email: c.Email}, nil
}

// Issue signs a token for the given principal. The identity provider owns
// real sign-in; this exists for local tooling and tests.
func Issue(secret string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString([]byte(secret))
}

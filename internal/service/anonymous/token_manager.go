package anonymous

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const guestAudience = "guest"

type tokenManager struct {
	secret []byte
}

func newTokenManager(secret []byte) *tokenManager {
	return &tokenManager{secret: secret}
}

func (m *tokenManager) Issue(guestID string, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("anonymous token secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   guestID,
		Audience:  jwt.ClaimStrings{guestAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *tokenManager) Validate(token string) (string, bool) {
	if token == "" || len(m.secret) == 0 {
		return "", false
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(guestAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", false
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", false
	}
	return claims.Subject, true
}

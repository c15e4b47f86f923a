package anonymous

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Service issues guest sessions. A session is a random guest id carried in
// a signed token; the guest cart is keyed by that id.
type Service struct {
	tokens *tokenManager
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		tokens: newTokenManager([]byte(secret)),
		ttl:    ttl,
	}
}

func (s *Service) Issue(ctx context.Context) (token, guestID string, err error) {
	guestID = uuid.NewString()
	token, err = s.tokens.Issue(guestID, s.ttl)
	if err != nil {
		return "", "", err
	}
	return token, guestID, nil
}

func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	guestID, ok := s.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return guestID, nil
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}

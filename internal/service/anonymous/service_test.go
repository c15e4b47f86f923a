package anonymous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"milaf-storefront/internal/identity"
)

func TestIssueAndLookup(t *testing.T) {
	svc := New("guest-secret", time.Hour)
	token, guestID, err := svc.Issue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.LookupByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != guestID {
		t.Fatalf("expected %s, got %s", guestID, got)
	}
	if svc.TTLSeconds() != 3600 {
		t.Fatalf("unexpected ttl %d", svc.TTLSeconds())
	}
}

func TestLookupRejects(t *testing.T) {
	svc := New("guest-secret", time.Hour)
	other := New("other-secret", time.Hour)
	foreign, _, _ := other.Issue(context.Background())
	expired, _ := newTokenManager([]byte("guest-secret")).Issue(uuid.NewString(), -time.Hour)

	// a user token signed with the same secret is not a guest session
	userToken, _ := identity.Issue("guest-secret", identity.Principal{UserID: "u1"}, time.Hour)

	for name, token := range map[string]string{
		"empty":   "",
		"foreign": foreign,
		"garbage": "abc.def.ghi",
		"user":    userToken,
		"expired": expired,
	} {
		if _, err := svc.LookupByToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestIssueWithoutSecretFails(t *testing.T) {
	if _, _, err := New("", time.Hour).Issue(context.Background()); err == nil {
		t.Fatalf("expected error without secret")
	}
}

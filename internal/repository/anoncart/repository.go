package anoncart

import (
	"context"

	"milaf-storefront/internal/domain"
)

// Repository stores guest carts keyed by guest id.
type Repository interface {
	Add(ctx context.Context, guestID string, item domain.AnonymousCartItem) (*domain.AnonymousCartItem, error)
	List(ctx context.Context, guestID string) ([]domain.AnonymousCartItem, error)
	Remove(ctx context.Context, guestID string, itemIDs ...string) error
	Clear(ctx context.Context, guestID string) error
}

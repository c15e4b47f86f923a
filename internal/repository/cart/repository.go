package cart

import (
	"context"

	"milaf-storefront/internal/domain"
)

// Repository persists authenticated carts. Every mutation returns the
// summary recomputed inside the same transaction.
type Repository interface {
	AddItem(ctx context.Context, userID string, item domain.CartLineItem) (*domain.CartSummary, error)
	RemoveItem(ctx context.Context, userID, name string, kind domain.UnitKind) (*domain.CartSummary, error)
	UpdateQuantity(ctx context.Context, userID, name string, kind domain.UnitKind, quantity int) (*domain.CartSummary, error)
	ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error)
	Clear(ctx context.Context, userID string) (*domain.CartSummary, error)
	Summary(ctx context.Context, userID string) (*domain.CartSummary, error)
}

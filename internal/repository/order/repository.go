package order

import (
	"context"

	"milaf-storefront/internal/domain"
)

type Repository interface {
	// Create inserts a new order. A second order for the same payment id
	// returns domain.ErrAlreadyExists.
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	// ListForUser returns orders newest first, or domain.ErrOrderingUnsupported
	// when the store cannot sort the query.
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListForUserUnordered(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber string) (*domain.Order, error)
}

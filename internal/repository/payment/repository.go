package payment

import (
	"context"

	"milaf-storefront/internal/domain"
)

// Repository stores payment attempts. Status changes are conditional on the
// current status so concurrent verify and webhook deliveries cannot both win.
type Repository interface {
	Create(ctx context.Context, attempt domain.PaymentAttempt) (*domain.PaymentAttempt, error)
	Get(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error)
	Transition(ctx context.Context, gatewayOrderID string, from, to domain.PaymentStatus) (*domain.PaymentAttempt, error)
	// Complete marks the attempt verified and records the payment and order ids.
	Complete(ctx context.Context, gatewayOrderID, paymentID, orderID string) (*domain.PaymentAttempt, error)
}

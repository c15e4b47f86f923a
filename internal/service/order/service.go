package order

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/notify"
)

type orderRepo interface {
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListForUserUnordered(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber string) (*domain.Order, error)
}

type Service struct {
	repo   orderRepo
	events notify.Publisher
	logger *zap.Logger
}

func New(repo orderRepo, events notify.Publisher, logger *zap.Logger) *Service {
	if events == nil {
		events = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, events: events, logger: logger.Named("order")}
}

type CreateInput struct {
	UserID          string
	PaymentID       string
	GatewayOrderID  string
	Quote           domain.Quote
	Currency        string
	DeliveryAddress domain.Address
	PaymentMethod   string
}

// Create records the order for a verified payment. It is keyed by payment id:
// a repeated call for the same payment returns the order already stored.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	switch {
	case in.UserID == "":
		return nil, domain.Invalid("userId", "required")
	case in.PaymentID == "":
		return nil, domain.Invalid("paymentId", "required")
	case len(in.Quote.Lines) == 0:
		return nil, domain.Invalid("items", "required")
	}

	existing, err := s.repo.GetByPaymentID(ctx, in.PaymentID)
	if err == nil {
		return s.sameOwner(existing, in.UserID)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	created, err := s.repo.Create(ctx, domain.Order{
		UserID:           in.UserID,
		PaymentID:        in.PaymentID,
		GatewayOrderID:   in.GatewayOrderID,
		Items:            in.Quote.Lines,
		ItemsTotalCents:  in.Quote.ItemsTotalCents,
		ShippingCents:    in.Quote.ShippingCents,
		TaxCents:         in.Quote.TaxCents,
		TotalAmountCents: in.Quote.GrandTotalCents,
		Currency:         strings.ToUpper(in.Currency),
		Status:           domain.OrderPending,
		DeliveryAddress:  in.DeliveryAddress,
		PaymentMethod:    in.PaymentMethod,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// lost the insert race to a concurrent delivery of the same payment
		existing, getErr := s.repo.GetByPaymentID(ctx, in.PaymentID)
		if getErr != nil {
			return nil, getErr
		}
		return s.sameOwner(existing, in.UserID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("payment_id", created.PaymentID),
		zap.Int64("total_cents", created.TotalAmountCents),
	)
	s.publish(ctx, notify.TopicOrderCreated, created)
	return created, nil
}

func (s *Service) sameOwner(o *domain.Order, userID string) (*domain.Order, error) {
	if o.UserID != userID {
		return nil, domain.ErrConflict
	}
	return o, nil
}

// ListForUser returns the user's orders newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.Invalid("userId", "required")
	}
	orders, err := s.repo.ListForUser(ctx, userID)
	if err == nil {
		return orders, nil
	}
	if !errors.Is(err, domain.ErrOrderingUnsupported) {
		return nil, err
	}
	s.logger.Warn("sorted order query unavailable, sorting in memory", zap.String("user_id", userID))
	orders, err = s.repo.ListForUserUnordered(ctx, userID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(orders)
	return orders, nil
}

// SortNewestFirst orders by order date descending with id as tie-breaker.
func SortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
}

func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.Invalid("orderId", "required")
	}
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(status) {
		return nil, domain.ErrInvalidTransition
	}
	updated, err := s.repo.UpdateStatus(ctx, orderID, current.Status, status, strings.TrimSpace(trackingNumber))
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
	)
	s.publish(ctx, notify.TopicOrderStatusChanged, updated)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, topic string, o *domain.Order) {
	if err := s.events.Publish(ctx, notify.NewEvent(topic, o.ID, o)); err != nil {
		s.logger.Warn("publish order event", zap.String("topic", topic), zap.String("order_id", o.ID), zap.Error(err))
	}
}

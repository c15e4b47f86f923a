package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/notify"
	"milaf-storefront/internal/parcel"
	ordersvc "milaf-storefront/internal/service/order"
)

type catalogLookup interface {
	Get(ctx context.Context, name string) (*domain.Product, error)
}

type shippingResolver interface {
	ShippingCost(ctx context.Context, postcode string, profile *parcel.Profile, serviceCode string) (*parcel.Cost, error)
}

type gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*domain.PaymentOrderHandle, error)
	VerifyPayment(orderID, paymentID, signature string) error
	VerifyWebhook(rawBody []byte, signature string) error
}

type attemptRepo interface {
	Create(ctx context.Context, attempt domain.PaymentAttempt) (*domain.PaymentAttempt, error)
	Get(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error)
	Transition(ctx context.Context, gatewayOrderID string, from, to domain.PaymentStatus) (*domain.PaymentAttempt, error)
	Complete(ctx context.Context, gatewayOrderID, paymentID, orderID string) (*domain.PaymentAttempt, error)
}

type orderCreator interface {
	Create(ctx context.Context, in ordersvc.CreateInput) (*domain.Order, error)
}

type cartStore interface {
	ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error)
	RemovePurchased(ctx context.Context, userID string, purchased []domain.OrderItem) error
}

type Deps struct {
	Catalog  catalogLookup
	Shipping shippingResolver
	Gateway  gateway
	Attempts attemptRepo
	Orders   orderCreator
	Carts    cartStore
	Events   notify.Publisher
	Logger   *zap.Logger
	Currency string
}

type Service struct {
	catalog  catalogLookup
	shipping shippingResolver
	gateway  gateway
	attempts attemptRepo
	orders   orderCreator
	carts    cartStore
	events   notify.Publisher
	logger   *zap.Logger
	currency string
}

func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Currency == "" {
		d.Currency = "AUD"
	}
	return &Service{
		catalog:  d.Catalog,
		shipping: d.Shipping,
		gateway:  d.Gateway,
		attempts: d.Attempts,
		orders:   d.Orders,
		carts:    d.Carts,
		events:   d.Events,
		logger:   d.Logger.Named("checkout"),
		currency: strings.ToUpper(d.Currency),
	}
}

// LineRequest is a client-submitted cart line. It has no price: charges are
// always priced server-side.
type LineRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	UnitKind string `json:"unitKind"`
}

type CheckoutRequest struct {
	UserID          string
	Items           []LineRequest
	Postcode        string
	DeliveryAddress domain.Address
	PaymentMethod   string
}

// ComputeTotal prices items against the catalog and adds shipping to
// postcode. A line keeps its locked-in price when it has one; otherwise the
// current catalog price applies. Lines whose product no longer exists are
// left out of the charge and listed in Quote.Skipped.
func (s *Service) ComputeTotal(ctx context.Context, items []domain.CartLineItem, postcode string) (*domain.Quote, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("cartItems", "cart is empty")
	}
	postcode = strings.TrimSpace(postcode)
	if !validPostcode(postcode) {
		return nil, domain.Invalid("zipcode", "a 4 digit postcode is required")
	}

	quote := &domain.Quote{}
	for _, item := range items {
		if err := domain.CheckQuantity(item.Quantity); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return nil, domain.Invalid("quantity", ve.Reason+" for "+item.Name)
			}
			return nil, err
		}
		kind, err := domain.ParseUnitKind(string(item.UnitKind))
		if err != nil {
			return nil, err
		}
		product, err := s.catalog.Get(ctx, item.Name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
				quote.Skipped = append(quote.Skipped, item.Name)
				continue
			}
			return nil, err
		}
		price := item.PriceCents
		if price <= 0 {
			price = product.UnitPrice(kind)
		}
		if price <= 0 {
			quote.Skipped = append(quote.Skipped, item.Name)
			continue
		}
		line, err := domain.LineTotal(price, item.Quantity)
		if err != nil {
			return nil, err
		}
		if quote.ItemsTotalCents, err = domain.AddCents(quote.ItemsTotalCents, line); err != nil {
			return nil, err
		}
		quote.Lines = append(quote.Lines, domain.OrderItem{Name: product.Name, Quantity: item.Quantity, UnitKind: kind, PriceCents: price})
	}
	if len(quote.Lines) == 0 {
		return nil, domain.Invalid("cartItems", "no purchasable items")
	}

	cost, err := s.shipping.ShippingCost(ctx, postcode, nil, "")
	if err != nil {
		return nil, err
	}
	quote.ShippingCents = cost.AmountCents
	quote.TaxCents = 0
	grand, err := domain.AddCents(quote.ItemsTotalCents, quote.ShippingCents)
	if err != nil {
		return nil, err
	}
	if quote.GrandTotalCents, err = domain.AddCents(grand, quote.TaxCents); err != nil {
		return nil, err
	}
	return quote, nil
}

// CreatePaymentOrder opens a gateway order for the server-computed total of
// the request, or of the user's stored cart when no items are given.
func (s *Service) CreatePaymentOrder(ctx context.Context, req CheckoutRequest) (*domain.PaymentOrderHandle, error) {
	if req.UserID == "" {
		return nil, domain.Invalid("userId", "required")
	}
	items, err := s.checkoutItems(ctx, req)
	if err != nil {
		return nil, err
	}
	quote, err := s.ComputeTotal(ctx, items, req.Postcode)
	if err != nil {
		return nil, err
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	handle, err := s.gateway.CreateOrder(ctx, quote.GrandTotalCents, s.currency, receipt, map[string]string{
		"userId":   req.UserID,
		"postcode": strings.TrimSpace(req.Postcode),
	})
	if err != nil {
		return nil, err
	}
	if handle.Amount != quote.GrandTotalCents {
		s.logger.Error("gateway order amount mismatch",
			zap.String("gateway_order_id", handle.OrderID),
			zap.Int64("requested", quote.GrandTotalCents),
			zap.Int64("returned", handle.Amount),
		)
		return nil, &domain.UpstreamError{Service: "payment", Message: "order amount mismatch", Kind: domain.ErrUpstreamMalformed}
	}

	if _, err := s.attempts.Create(ctx, domain.PaymentAttempt{
		GatewayOrderID:  handle.OrderID,
		UserID:          req.UserID,
		Status:          domain.PaymentCreated,
		AmountCents:     quote.GrandTotalCents,
		Currency:        handle.Currency,
		Quote:           *quote,
		Postcode:        strings.TrimSpace(req.Postcode),
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
	}); err != nil {
		return nil, err
	}
	if _, err := s.attempts.Transition(ctx, handle.OrderID, domain.PaymentCreated, domain.PaymentAwaitingPayment); err != nil {
		return nil, err
	}

	s.logger.Info("payment order created",
		zap.String("user_id", req.UserID),
		zap.String("gateway_order_id", handle.OrderID),
		zap.Int64("amount", handle.Amount),
		zap.Strings("skipped", quote.Skipped),
	)
	return handle, nil
}

func (s *Service) checkoutItems(ctx context.Context, req CheckoutRequest) ([]domain.CartLineItem, error) {
	if len(req.Items) > 0 {
		items := make([]domain.CartLineItem, 0, len(req.Items))
		for _, l := range req.Items {
			kind, err := domain.ParseUnitKind(l.UnitKind)
			if err != nil {
				return nil, err
			}
			items = append(items, domain.CartLineItem{Name: strings.TrimSpace(l.Name), Quantity: l.Quantity, UnitKind: kind})
		}
		return items, nil
	}
	stored, err := s.carts.ListItems(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	var items []domain.CartLineItem
	for _, it := range stored {
		if !it.Paid {
			items = append(items, it)
		}
	}
	return items, nil
}

// VerifyPayment confirms a completed payment for one of the user's gateway
// orders and returns the persisted order. A bad signature fails the attempt.
// Repeating a successful verification returns the same order.
func (s *Service) VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string) (*domain.Order, error) {
	switch {
	case orderID == "":
		return nil, domain.Invalid("orderId", "required")
	case paymentID == "":
		return nil, domain.Invalid("paymentId", "required")
	case signature == "":
		return nil, domain.Invalid("signature", "required")
	}

	attempt, err := s.attempts.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, domain.ErrNotFound
	}

	if err := s.gateway.VerifyPayment(orderID, paymentID, signature); err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			s.reject(ctx, attempt, "signature mismatch")
		}
		return nil, err
	}

	switch attempt.Status {
	case domain.PaymentAwaitingPayment:
	case domain.PaymentVerified:
		if attempt.PaymentID != paymentID {
			return nil, domain.ErrConflict
		}
	default:
		return nil, domain.ErrInvalidTransition
	}
	return s.confirm(ctx, attempt, paymentID)
}

// confirm persists the order and then marks the attempt verified. Order
// creation is keyed by payment id, so a retry after a partial failure finds
// the order already there. Only awaiting or already verified attempts get an
// order.
func (s *Service) confirm(ctx context.Context, attempt *domain.PaymentAttempt, paymentID string) (*domain.Order, error) {
	switch attempt.Status {
	case domain.PaymentAwaitingPayment, domain.PaymentVerified:
	default:
		return nil, domain.ErrInvalidTransition
	}
	o, err := s.orders.Create(ctx, ordersvc.CreateInput{
		UserID:          attempt.UserID,
		PaymentID:       paymentID,
		GatewayOrderID:  attempt.GatewayOrderID,
		Quote:           attempt.Quote,
		Currency:        attempt.Currency,
		DeliveryAddress: attempt.DeliveryAddress,
		PaymentMethod:   attempt.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	if attempt.Status == domain.PaymentVerified {
		return o, nil
	}

	completed, err := s.attempts.Complete(ctx, attempt.GatewayOrderID, paymentID, o.ID)
	if errors.Is(err, domain.ErrInvalidTransition) {
		current, getErr := s.attempts.Get(ctx, attempt.GatewayOrderID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == domain.PaymentVerified && current.PaymentID == paymentID {
			return o, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment verified",
		zap.String("gateway_order_id", completed.GatewayOrderID),
		zap.String("payment_id", paymentID),
		zap.String("order_id", o.ID),
	)
	if err := s.events.Publish(ctx, notify.NewEvent(notify.TopicPaymentVerified, completed.GatewayOrderID, completed)); err != nil {
		s.logger.Warn("publish payment event", zap.Error(err))
	}
	if err := s.carts.RemovePurchased(ctx, completed.UserID, o.Items); err != nil {
		s.logger.Warn("remove purchased cart lines", zap.String("user_id", completed.UserID), zap.Error(err))
	}
	return o, nil
}

func (s *Service) reject(ctx context.Context, attempt *domain.PaymentAttempt, reason string) {
	if attempt.Status != domain.PaymentAwaitingPayment {
		return
	}
	failed, err := s.attempts.Transition(ctx, attempt.GatewayOrderID, domain.PaymentAwaitingPayment, domain.PaymentFailed)
	if err != nil {
		s.logger.Warn("mark payment attempt failed", zap.String("gateway_order_id", attempt.GatewayOrderID), zap.Error(err))
		return
	}
	s.logger.Warn("payment rejected", zap.String("gateway_order_id", attempt.GatewayOrderID), zap.String("reason", reason))
	if err := s.events.Publish(ctx, notify.NewEvent(notify.TopicPaymentRejected, failed.GatewayOrderID, failed)); err != nil {
		s.logger.Warn("publish payment event", zap.Error(err))
	}
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// HandleWebhook authenticates a gateway webhook over its raw body and applies
// payment outcomes to the matching attempt. Unknown events and orders are
// acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if err := s.gateway.VerifyWebhook(rawBody, signature); err != nil {
		s.logger.Warn("webhook rejected", zap.Error(err))
		return err
	}
	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return domain.Invalid("body", "webhook payload is not JSON")
	}

	payment := ev.Payload.Payment.Entity
	orderID := payment.OrderID
	if orderID == "" {
		orderID = ev.Payload.Order.Entity.ID
	}
	log := s.logger.With(zap.String("event", ev.Event), zap.String("gateway_order_id", orderID), zap.String("payment_id", payment.ID))

	switch ev.Event {
	case "payment.captured", "order.paid", "payment.failed":
	default:
		log.Debug("webhook event ignored")
		return nil
	}
	if orderID == "" || payment.ID == "" {
		log.Warn("webhook missing order or payment id")
		return nil
	}

	attempt, err := s.attempts.Get(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("webhook for unknown order")
		return nil
	}
	if err != nil {
		return err
	}

	if ev.Event == "payment.failed" {
		s.reject(ctx, attempt, "gateway reported failure")
		return nil
	}

	switch attempt.Status {
	case domain.PaymentAwaitingPayment:
	case domain.PaymentVerified:
		log.Debug("webhook for verified attempt")
		return nil
	case domain.PaymentFailed:
		log.Warn("capture reported for failed attempt")
		return nil
	default:
		log.Warn("capture reported before attempt was awaiting payment", zap.String("status", string(attempt.Status)))
		return nil
	}
	if payment.Amount != 0 && payment.Amount != attempt.AmountCents {
		log.Error("webhook amount mismatch", zap.Int64("expected", attempt.AmountCents), zap.Int64("got", payment.Amount))
		return nil
	}
	if _, err := s.confirm(ctx, attempt, payment.ID); err != nil {
		return err
	}
	return nil
}

func validPostcode(p string) bool {
	if len(p) != 4 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

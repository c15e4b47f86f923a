package cart

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/notify"
)

type Service struct {
	repo        cartRepo
	productRepo productRepo
	guests      guestCarts
	events      notify.Publisher
	logger      *zap.Logger
}

type cartRepo interface {
	AddItem(ctx context.Context, userID string, item domain.CartLineItem) (*domain.CartSummary, error)
	RemoveItem(ctx context.Context, userID, name string, kind domain.UnitKind) (*domain.CartSummary, error)
	UpdateQuantity(ctx context.Context, userID, name string, kind domain.UnitKind, quantity int) (*domain.CartSummary, error)
	ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error)
	Clear(ctx context.Context, userID string) (*domain.CartSummary, error)
	Summary(ctx context.Context, userID string) (*domain.CartSummary, error)
}

type productRepo interface {
	GetByName(ctx context.Context, name string) (*domain.Product, error)
}

type guestCarts interface {
	List(ctx context.Context, guestID string) ([]domain.AnonymousCartItem, error)
	Remove(ctx context.Context, guestID string, itemIDs ...string) error
}

func New(repo cartRepo, productRepo productRepo, guests guestCarts, events notify.Publisher, logger *zap.Logger) *Service {
	if events == nil {
		events = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, productRepo: productRepo, guests: guests, events: events, logger: logger.Named("cart")}
}

// AddItem merges quantity into an existing (name, unitKind) line and
// overwrites its price, or inserts a new line.
func (s *Service) AddItem(ctx context.Context, userID, name string, quantity int, kind domain.UnitKind, priceCents int64) (*domain.CartSummary, error) {
	name = strings.TrimSpace(name)
	if err := validateLine(userID, name, kind); err != nil {
		return nil, err
	}
	if err := domain.CheckQuantity(quantity); err != nil {
		return nil, err
	}
	if priceCents < 0 {
		return nil, domain.Invalid("price", "must not be negative")
	}
	summary, err := s.repo.AddItem(ctx, userID, domain.CartLineItem{
		Name:       name,
		Quantity:   quantity,
		UnitKind:   kind,
		PriceCents: priceCents,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, summary)
	return summary, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, name string, kind domain.UnitKind) (*domain.CartSummary, error) {
	name = strings.TrimSpace(name)
	if err := validateLine(userID, name, kind); err != nil {
		return nil, err
	}
	summary, err := s.repo.RemoveItem(ctx, userID, name, kind)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, summary)
	return summary, nil
}

// UpdateQuantity sets the line quantity. Zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, name string, kind domain.UnitKind, quantity int) (*domain.CartSummary, error) {
	name = strings.TrimSpace(name)
	if err := validateLine(userID, name, kind); err != nil {
		return nil, err
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.CheckQuantity(quantity)
	}
	summary, err := s.repo.UpdateQuantity(ctx, userID, name, kind, quantity)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, summary)
	return summary, nil
}

func (s *Service) ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	if userID == "" {
		return nil, domain.Invalid("userId", "required")
	}
	return s.repo.ListItems(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) (*domain.CartSummary, error) {
	if userID == "" {
		return nil, domain.Invalid("userId", "required")
	}
	summary, err := s.repo.Clear(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, summary)
	return summary, nil
}

// RemovePurchased takes paid quantities off the matching (name, unitKind)
// lines. Lines added after checkout and any surplus quantity stay in the
// cart.
func (s *Service) RemovePurchased(ctx context.Context, userID string, purchased []domain.OrderItem) error {
	if userID == "" {
		return domain.Invalid("userId", "required")
	}
	lines, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return err
	}
	var summary *domain.CartSummary
	for _, p := range purchased {
		for _, l := range lines {
			if !strings.EqualFold(l.Name, p.Name) || l.UnitKind != p.UnitKind {
				continue
			}
			left := l.Quantity - p.Quantity
			if left > 0 {
				summary, err = s.repo.UpdateQuantity(ctx, userID, l.Name, l.UnitKind, left)
			} else {
				summary, err = s.repo.RemoveItem(ctx, userID, l.Name, l.UnitKind)
			}
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			break
		}
	}
	if summary != nil {
		s.publish(ctx, summary)
	}
	return nil
}

func (s *Service) Summary(ctx context.Context, userID string) (*domain.CartSummary, error) {
	if userID == "" {
		return nil, domain.Invalid("userId", "required")
	}
	return s.repo.Summary(ctx, userID)
}

// ListItemsWithCatalogDetails joins each line with its catalog entry. A
// locked-in stored price wins over the catalog price; lines whose product is
// gone stay visible with Resolved unset.
func (s *Service) ListItemsWithCatalogDetails(ctx context.Context, userID string) ([]domain.CartLineDetail, error) {
	items, err := s.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	details := make([]domain.CartLineDetail, 0, len(items))
	for _, item := range items {
		d := domain.CartLineDetail{CartLineItem: item, DisplayPriceCents: item.PriceCents}
		product, err := s.productRepo.GetByName(ctx, item.Name)
		switch {
		case err == nil:
			d.Resolved = true
			d.Category = product.Category
			d.Description = product.Description
			d.StockStatus = product.StockStatus
			if item.PriceCents <= 0 {
				d.DisplayPriceCents = product.UnitPrice(item.UnitKind)
			}
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug("cart line without catalog entry", zap.String("user_id", userID), zap.String("name", item.Name))
		default:
			return nil, err
		}
		d.LineTotalCents = d.DisplayPriceCents * int64(item.Quantity)
		details = append(details, d)
	}
	return details, nil
}

type MergeResult struct {
	Merged  int      `json:"merged"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// MergeAnonymousCart moves the guest's piece items into the user's cart.
// Case items belong to the bulk-order flow and are left in place. Each item
// is removed from the guest cart only after it has been added, so a failed
// item stays behind for the next attempt.
func (s *Service) MergeAnonymousCart(ctx context.Context, userID, guestID string) (MergeResult, error) {
	var res MergeResult
	if userID == "" {
		return res, domain.Invalid("userId", "required")
	}
	if guestID == "" {
		return res, domain.Invalid("guestId", "required")
	}
	items, err := s.guests.List(ctx, guestID)
	if err != nil {
		return res, err
	}

	var last *domain.CartSummary
	for _, item := range items {
		if item.IsBulk() {
			res.Skipped++
			continue
		}
		summary, err := s.repo.AddItem(ctx, userID, domain.CartLineItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitKind:   item.UnitKind,
			PriceCents: item.PriceCents,
		})
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, item.Name+": "+err.Error())
			s.logger.Warn("merge guest item failed",
				zap.String("user_id", userID),
				zap.String("guest_id", guestID),
				zap.String("name", item.Name),
				zap.Error(err),
			)
			continue
		}
		last = summary
		res.Merged++
		if err := s.guests.Remove(ctx, guestID, item.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			res.Errors = append(res.Errors, item.Name+": remove from guest cart: "+err.Error())
			s.logger.Error("remove merged guest item", zap.String("guest_id", guestID), zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	if last != nil {
		s.publish(ctx, last)
	}
	s.logger.Info("merged guest cart",
		zap.String("user_id", userID),
		zap.String("guest_id", guestID),
		zap.Int("merged", res.Merged),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) publish(ctx context.Context, summary *domain.CartSummary) {
	if err := s.events.Publish(ctx, notify.NewEvent(notify.TopicCartUpdated, summary.UserID, summary)); err != nil {
		s.logger.Warn("publish cart event", zap.String("user_id", summary.UserID), zap.Error(err))
	}
}

func validateLine(userID, name string, kind domain.UnitKind) error {
	if userID == "" {
		return domain.Invalid("userId", "required")
	}
	if name == "" {
		return domain.Invalid("name", "required")
	}
	if kind != domain.UnitPiece && kind != domain.UnitCase {
		return domain.Invalid("unitKind", "must be piece or case")
	}
	return nil
}

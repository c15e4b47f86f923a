package catalog

import (
	"context"
	"strings"

	"milaf-storefront/internal/domain"
	productrepo "milaf-storefront/internal/repository/product"
)

// Service is the read side of the catalog used by cart and checkout.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// Get returns domain.ErrNotFound for unknown names.
func (s *Service) Get(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("name", "required")
	}
	return s.repo.GetByName(ctx, name)
}

func (s *Service) UnitPrice(ctx context.Context, name string, kind domain.UnitKind) (int64, error) {
	p, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return p.UnitPrice(kind), nil
}

package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Products is the demo beverage catalog.
var Products = []domain.Product{
	{Name: "Milaf Cola", PriceCents: 499, CasePriceCents: 4999, Category: "Soft drinks", Description: "Date-sweetened cola, 330ml can", StockStatus: domain.StockInStock},
	{Name: "Milaf Cola Zero", PriceCents: 499, CasePriceCents: 4999, Category: "Soft drinks", Description: "No added sugar, 330ml can", StockStatus: domain.StockInStock},
	{Name: "Milaf Lemon", PriceCents: 450, CasePriceCents: 4500, Category: "Soft drinks", Description: "Sparkling lemon with date syrup", StockStatus: domain.StockLow},
	{Name: "Milaf Ginger", PriceCents: 550, CasePriceCents: 5400, Category: "Soft drinks", Description: "Ginger brew, 330ml can", StockStatus: domain.StockInStock},
	{Name: "Date Syrup", PriceCents: 1299, Category: "Pantry", Description: "Pure date syrup, 400g", StockStatus: domain.StockInStock},
	{Name: "Sukkari Dates", PriceCents: 1899, CasePriceCents: 17999, Category: "Pantry", Description: "Premium dates, 1kg box", StockStatus: domain.StockOutOfStock},
}

// Apply upserts the demo catalog. It is idempotent.
func Apply(ctx context.Context, repo ProductWriter, currency string, logger *zap.Logger) error {
	for _, p := range Products {
		p.Currency = currency
		if _, err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	if logger != nil {
		logger.Info("seed data applied", zap.Int("products", len(Products)))
	}
	return nil
}

package domain

import "time"

type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLow        StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

// Product is a catalog entry. The catalog is the authoritative price source.
type Product struct {
	Name           string      `json:"name"`
	PriceCents     int64       `json:"priceCents"`
	CasePriceCents int64       `json:"casePriceCents"`
	Category       string      `json:"category,omitempty"`
	Description    string      `json:"description,omitempty"`
	StockStatus    StockStatus `json:"stockStatus"`
	Currency       string      `json:"currency"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// UnitPrice returns the catalog price for one unit of the given kind. A
// product without a case price is sold by the case at its piece price.
func (p Product) UnitPrice(kind UnitKind) int64 {
	if kind == UnitCase && p.CasePriceCents > 0 {
		return p.CasePriceCents
	}
	return p.PriceCents
}

package domain

import (
	"strings"
	"time"
)

type UnitKind string

const (
	UnitPiece UnitKind = "piece"
	UnitCase  UnitKind = "case"
)

// ParseUnitKind normalizes a unit kind; empty input means piece.
func ParseUnitKind(raw string) (UnitKind, error) {
	switch UnitKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", UnitPiece:
		return UnitPiece, nil
	case UnitCase:
		return UnitCase, nil
	default:
		return "", Invalid("unitKind", "must be piece or case")
	}
}

// CartLineItem is one (name, unit kind) line of an authenticated cart.
// PriceCents is the price snapshotted when the line was last added.
type CartLineItem struct {
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	UnitKind   UnitKind  `json:"unitKind"`
	PriceCents int64     `json:"priceCents"`
	Paid       bool      `json:"paid"`
	AddedAt    time.Time `json:"addedAt"`
}

// CartSummary is the denormalized cart header kept alongside the lines.
type CartSummary struct {
	UserID          string    `json:"userId"`
	TotalItems      int       `json:"totalItems"`
	TotalPriceCents int64     `json:"totalPriceCents"`
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CartLineDetail is a cart line joined with its catalog entry.
type CartLineDetail struct {
	CartLineItem
	DisplayPriceCents int64       `json:"displayPriceCents"`
	LineTotalCents    int64       `json:"lineTotalCents"`
	Category          string      `json:"category,omitempty"`
	Description       string      `json:"description,omitempty"`
	StockStatus       StockStatus `json:"stockStatus,omitempty"`
	Resolved          bool        `json:"resolved"`
}

// AnonymousCartItem is a guest cart line. It has no server-side identity
// beyond the guest session until it is merged.
type AnonymousCartItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	UnitKind   UnitKind  `json:"unitKind"`
	PriceCents int64     `json:"priceCents"`
	Paid       bool      `json:"paid"`
	AddedAt    time.Time `json:"addedAt"`
}

// IsBulk reports whether the item belongs to the separate bulk-ordering flow.
func (i AnonymousCartItem) IsBulk() bool {
	return i.UnitKind == UnitCase
}

package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of fraction digits of every supported currency.
const MinorUnitDigits = 2

// ToMinorUnits converts a major-unit amount to minor units, rounding half away
// from zero to the nearest integer minor unit.
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Shift(MinorUnitDigits).Round(0).IntPart()
}

// ParseMajor parses a decimal major-unit string such as "5.99" into minor units.
func ParseMajor(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return ToMinorUnits(d), nil
}

// FromMinorUnits converts minor units back to a major-unit decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitDigits)
}

// FormatMajor renders minor units as a fixed two-digit major amount.
func FormatMajor(minor int64) string {
	return FromMinorUnits(minor).StringFixed(MinorUnitDigits)
}

// MaxLineQuantity bounds the quantity of any single cart or order line.
const MaxLineQuantity = 1000

// CheckQuantity rejects quantities outside 1..MaxLineQuantity.
func CheckQuantity(quantity int) error {
	if quantity <= 0 {
		return Invalid("quantity", "must be positive")
	}
	if quantity > MaxLineQuantity {
		return Invalid("quantity", fmt.Sprintf("must not exceed %d", MaxLineQuantity))
	}
	return nil
}

// LineTotal returns priceCents*quantity, failing instead of overflowing.
func LineTotal(priceCents int64, quantity int) (int64, error) {
	if priceCents < 0 || quantity < 0 {
		return 0, Invalid("amount", "must not be negative")
	}
	if quantity != 0 && priceCents > math.MaxInt64/int64(quantity) {
		return 0, Invalid("amount", "line total out of range")
	}
	return priceCents * int64(quantity), nil
}

// AddCents sums non-negative minor-unit amounts, failing instead of overflowing.
func AddCents(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, Invalid("amount", "must not be negative")
	}
	if a > math.MaxInt64-b {
		return 0, Invalid("amount", "total out of range")
	}
	return a + b, nil
}

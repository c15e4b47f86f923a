package domain

import "time"

type PaymentStatus string

const (
	PaymentCreated         PaymentStatus = "created"
	PaymentAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentVerified        PaymentStatus = "verified"
	PaymentFailed          PaymentStatus = "failed"
)

// CanTransition reports whether a payment attempt may move from s to next.
// Verified and failed are terminal.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentCreated:
		return next == PaymentAwaitingPayment || next == PaymentFailed
	case PaymentAwaitingPayment:
		return next == PaymentVerified || next == PaymentFailed
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentVerified || s == PaymentFailed
}

// PaymentOrderHandle is what the client needs to open the payment sheet.
// Amount is in minor units.
type PaymentOrderHandle struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Quote is a server-computed checkout total in minor units.
type Quote struct {
	ItemsTotalCents int64       `json:"itemsTotalCents"`
	ShippingCents   int64       `json:"shippingCents"`
	TaxCents        int64       `json:"taxCents"`
	GrandTotalCents int64       `json:"grandTotalCents"`
	Lines           []OrderItem `json:"lines"`
	Skipped         []string    `json:"skipped,omitempty"`
}

// PaymentAttempt is the server-side record of one gateway order.
type PaymentAttempt struct {
	GatewayOrderID  string        `json:"gatewayOrderId"`
	UserID          string        `json:"userId"`
	Status          PaymentStatus `json:"status"`
	AmountCents     int64         `json:"amountCents"`
	Currency        string        `json:"currency"`
	Quote           Quote         `json:"quote"`
	Postcode        string        `json:"postcode"`
	DeliveryAddress Address       `json:"deliveryAddress"`
	PaymentMethod   string        `json:"paymentMethod"`
	PaymentID       string        `json:"paymentId,omitempty"`
	OrderID         string        `json:"orderId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

// ParseOrderStatus accepts only known statuses.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return s, nil
	}
	return "", Invalid("status", "unknown order status")
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is an immutable line snapshot taken at charge time.
type OrderItem struct {
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitKind   UnitKind `json:"unitKind"`
	PriceCents int64    `json:"priceCents"`
}

type Address struct {
	Name     string `json:"name,omitempty"`
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

type Order struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	PaymentID        string      `json:"paymentId"`
	GatewayOrderID   string      `json:"gatewayOrderId"`
	Items            []OrderItem `json:"items"`
	ItemsTotalCents  int64       `json:"itemsTotalCents"`
	ShippingCents    int64       `json:"shippingCents"`
	TaxCents         int64       `json:"taxCents"`
	TotalAmountCents int64       `json:"totalAmountCents"`
	Currency         string      `json:"currency"`
	Status           OrderStatus `json:"status"`
	OrderDate        time.Time   `json:"orderDate"`
	DeliveryAddress  Address     `json:"deliveryAddress"`
	PaymentMethod    string      `json:"paymentMethod"`
	TrackingNumber   string      `json:"trackingNumber,omitempty"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderShipped, OrderCancelled},
	OrderShipped: {OrderDelivered},
}

// ParseOrderStatus returns the status named by s, or false when unknown.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return st, true
	}
	return "", false
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

type Address struct {
	ID         string    `json:"id"`
	CustomerID *string   `json:"customerId,omitempty"`
	Kind       string    `json:"kind"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postalCode"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Order struct {
	ID                string          `json:"id"`
	CustomerID        *string         `json:"customerId,omitempty"`
	GuestToken        *string         `json:"-"`
	ProviderSessionID string          `json:"providerSessionId"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	CustomerName      string          `json:"customerName,omitempty"`
	Status            OrderStatus     `json:"status"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Currency          string          `json:"currency"`
	ShippingAddressID string          `json:"shippingAddressId"`
	BillingAddressID  string          `json:"billingAddressId"`
	ShippingAddress   *Address        `json:"shippingAddress,omitempty"`
	Items             []OrderItem     `json:"items,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OrderItem snapshots a cart line at purchase time.
type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	VariantID       string          `json:"variantId"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
}

// Payment records the provider transaction backing an order.
type Payment struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"orderId"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transactionId,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

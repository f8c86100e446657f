package order

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// MaterializeInput carries everything needed to turn a cart into an order.
type MaterializeInput struct {
	SessionID     string
	CartID        string
	Owner         domain.OwnerKey
	CustomerEmail string
	CustomerName  string
	Currency      string
	TotalAmount   decimal.Decimal
	Shipping      domain.Address

	PaymentMethod string
	PaymentStatus string
	TransactionID string
}

type Repository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// GetByID returns the order with its items and shipping address.
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// Materialize creates the order, its items and payment, then deletes the cart, all in one
	// transaction. created is false when an order for the session already existed.
	Materialize(ctx context.Context, in MaterializeInput) (orderID string, created bool, err error)
	// UpdateStatus moves an order from one status to another. ErrNotFound is returned when
	// the order does not exist or is no longer in status from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
}

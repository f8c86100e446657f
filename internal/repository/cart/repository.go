package cart

import (
	"context"

	"storefront/internal/domain"
)

// MoveOutcome reports what MoveLine did with a guest line.
type MoveOutcome int

const (
	// MoveGone means the line no longer belonged to the source cart.
	MoveGone MoveOutcome = iota
	// MoveRepointed means the line now belongs to the target cart unchanged.
	MoveRepointed
	// MoveSummed means the quantity was added to the target's line for the same variant.
	MoveSummed
)

type Repository interface {
	// GetOrCreate returns the owner's cart, creating it if needed. Safe under concurrent first use.
	GetOrCreate(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	GetByOwner(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	ListItems(ctx context.Context, cartID string) ([]domain.CartItemView, error)

	// AddLine inserts a line or increments the quantity of the existing line for the variant.
	AddLine(ctx context.Context, cartID, variantID string, quantity int) (*domain.CartLine, error)
	// SetLineQuantity sets a line's quantity. A quantity of zero or less deletes the line.
	SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) error
	RemoveLine(ctx context.Context, cartID, lineID string) error
	ClearLines(ctx context.Context, cartID string) error
	// DeleteIfEmpty removes a cart that holds no lines. It returns domain.ErrCartNotEmpty
	// when lines remain and domain.ErrNotFound when the cart is already gone.
	DeleteIfEmpty(ctx context.Context, cartID string) error

	// MoveLine transfers one line from one cart to another in its own transaction.
	MoveLine(ctx context.Context, fromCartID, lineID, toCartID string) (MoveOutcome, error)
}

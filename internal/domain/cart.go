package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customerId,omitempty"`
	GuestToken *string    `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Lines      []CartLine `json:"lineItems,omitempty"`
}

// Owner returns the owner key recorded on the cart row.
func (c Cart) Owner() OwnerKey {
	if c.CustomerID != nil {
		return UserOwner(*c.CustomerID)
	}
	if c.GuestToken != nil {
		return GuestOwner(*c.GuestToken)
	}
	return OwnerKey{}
}

type CartLine struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cartId"`
	VariantID string    `json:"variantId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// CartItemView is a line item joined with the variant and product data needed for display.
type CartItemView struct {
	ID        string           `json:"id"`
	VariantID string           `json:"variantId"`
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"salePrice"`
	Image     string           `json:"image"`
	Color     string           `json:"color"`
	Size      string           `json:"size"`
	Quantity  int              `json:"quantity"`
	MaxStock  int              `json:"maxStock"`
	Category  string           `json:"category"`
}

// EffectivePrice is the sale price when present and lower than the list price.
func (i CartItemView) EffectivePrice() decimal.Decimal {
	return EffectivePrice(i.Price, i.SalePrice)
}

// LineTotal is the effective price times the quantity.
func (i CartItemView) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartView is the read model returned by the cart service.
type CartView struct {
	CartID   string          `json:"cartId,omitempty"`
	Items    []CartItemView  `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Subtotal sums effective price times quantity over items.
func Subtotal(items []CartItemView) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// NewCartView builds a view and computes its subtotal.
func NewCartView(cartID string, items []CartItemView) CartView {
	if items == nil {
		items = []CartItemView{}
	}
	return CartView{CartID: cartID, Items: items, Subtotal: Subtotal(items)}
}

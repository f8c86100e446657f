package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Product struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Variant is the purchasable unit referenced by cart lines and order items.
type Variant struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	SKU       string           `json:"sku"`
	Color     string           `json:"color,omitempty"`
	Size      string           `json:"size,omitempty"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
	InStock   int              `json:"inStock"`
	CreatedAt time.Time        `json:"createdAt"`
}

// EffectivePrice returns the variant's current selling price.
func (v Variant) EffectivePrice() decimal.Decimal {
	return EffectivePrice(v.Price, v.SalePrice)
}

// EffectivePrice returns sale when present and lower than list, otherwise list.
func EffectivePrice(list decimal.Decimal, sale *decimal.Decimal) decimal.Decimal {
	if sale != nil && sale.LessThan(list) {
		return *sale
	}
	return list
}

// MinorUnits converts an amount to integer cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts integer cents back to a two-decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

package httpserver

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type priceValue struct {
	Type           string `json:"type"`
	CurrencyCode   string `json:"currencyCode"`
	CentAmount     int64  `json:"centAmount"`
	FractionDigits int    `json:"fractionDigits"`
}

func centPrice(amount decimal.Decimal, currency string) priceValue {
	return priceValue{
		Type:           "centPrecision",
		CurrencyCode:   strings.ToUpper(currency),
		CentAmount:     domain.MinorUnits(amount),
		FractionDigits: 2,
	}
}

type variantResponse struct {
	ID             string           `json:"id"`
	SKU            string           `json:"sku"`
	Color          string           `json:"color,omitempty"`
	Size           string           `json:"size,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	SalePrice      *decimal.Decimal `json:"salePrice,omitempty"`
	EffectivePrice priceValue       `json:"effectivePrice"`
	InStock        int              `json:"inStock"`
}

type productResponse struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	Variants    []variantResponse `json:"variants"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func toProductResponse(p domain.Product, currency string) productResponse {
	variants := make([]variantResponse, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, variantResponse{
			ID:             v.ID,
			SKU:            v.SKU,
			Color:          v.Color,
			Size:           v.Size,
			Price:          v.Price,
			SalePrice:      v.SalePrice,
			EffectivePrice: centPrice(v.EffectivePrice(), currency),
			InStock:        v.InStock,
		})
	}
	return productResponse{
		ID:          p.ID,
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Variants:    variants,
		CreatedAt:   p.CreatedAt,
	}
}

type orderResponse struct {
	*domain.Order
	Total priceValue `json:"total"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{Order: o, Total: centPrice(o.TotalAmount, o.Currency)}
}

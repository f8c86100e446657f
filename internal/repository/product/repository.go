package product

import (
	"context"

	"storefront/internal/domain"
)

// ListFilter narrows product listings. Zero values match everything.
type ListFilter struct {
	CategoryKey string
	Limit       int
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetVariant(ctx context.Context, id string) (*domain.Variant, error)
	// Upsert writes a product keyed by Key together with its variants keyed by SKU.
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

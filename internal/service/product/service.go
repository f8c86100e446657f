package product

import (
	"context"
	"strings"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// List returns products, optionally restricted to one category key. A non-positive
// limit selects DefaultLimit; larger values are capped at MaxLimit.
func (s *Service) List(ctx context.Context, categoryKey string, limit int) ([]domain.Product, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return s.repo.List(ctx, productrepo.ListFilter{
		CategoryKey: strings.ToLower(strings.TrimSpace(categoryKey)),
		Limit:       limit,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Upsert validates and writes a product with its variants.
func (s *Service) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.Key = strings.TrimSpace(p.Key)
	p.Name = strings.TrimSpace(p.Name)
	verr := &domain.ValidationError{}
	if p.Key == "" {
		verr.Add("key", "is required")
	}
	if p.Name == "" {
		verr.Add("name", "is required")
	}
	for i, v := range p.Variants {
		if strings.TrimSpace(v.SKU) == "" {
			verr.Add("variants", "sku is required")
		}
		if v.Price.IsNegative() {
			verr.Add("variants", "price must not be negative")
		}
		if v.SalePrice != nil && v.SalePrice.IsNegative() {
			verr.Add("variants", "sale price must not be negative")
		}
		if v.InStock < 0 {
			p.Variants[i].InStock = 0
		}
	}
	if !verr.Empty() {
		return nil, verr
	}
	return s.repo.Upsert(ctx, p)
}

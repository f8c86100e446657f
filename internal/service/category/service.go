package category

import (
	"context"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository/category"
)

type Service struct {
	repo category.Repository
}

func New(repo category.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

// Upsert creates or renames the category identified by Key.
func (s *Service) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Key = strings.ToLower(strings.TrimSpace(c.Key))
	c.Name = strings.TrimSpace(c.Name)
	verr := &domain.ValidationError{}
	if c.Key == "" {
		verr.Add("key", "is required")
	}
	if c.Name == "" {
		verr.Add("name", "is required")
	}
	if !verr.Empty() {
		return nil, verr
	}
	return s.repo.Upsert(ctx, c)
}

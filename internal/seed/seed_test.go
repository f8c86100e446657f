package seed

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
)

type recordingCategories struct{ saved []domain.Category }

func (r *recordingCategories) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	c.ID = "cat-" + c.Key
	r.saved = append(r.saved, c)
	return &c, nil
}

type recordingProducts struct {
	saved []domain.Product
	err   error
}

func (r *recordingProducts) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.saved = append(r.saved, p)
	return &p, nil
}

func TestApplyWritesDemoCatalog(t *testing.T) {
	cats := &recordingCategories{}
	prods := &recordingProducts{}

	res, err := Apply(context.Background(), cats, prods, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Categories != 2 || res.Products != 2 || res.Variants != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	tee := prods.saved[0]
	if tee.CategoryID != "cat-tops" {
		t.Fatalf("expected category id resolved, got %q", tee.CategoryID)
	}
	if tee.Variants[0].Price.StringFixed(2) != "100.00" || tee.Variants[0].SalePrice != nil {
		t.Fatalf("expected first tee variant at 100.00 without sale, got %+v", tee.Variants[0])
	}
	if sale := tee.Variants[2].SalePrice; sale == nil || sale.StringFixed(2) != "80.00" {
		t.Fatalf("expected sale price on white tee, got %v", sale)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Apply(context.Background(), &recordingCategories{}, &recordingProducts{err: boom}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

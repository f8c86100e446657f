package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

type stubCategoryRepo struct {
	items []domain.Category
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func (s *stubCategoryRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	c.ID = "cat-" + c.Key
	s.items = append(s.items, c)
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `key,name,description,category,image,sku,color,size,price,sale_price,stock
classic-tee,Classic Tee,Cotton tee,tops,https://example.com/tee.jpg,TEE-BLK-M,Black,M,100.00,,25
,,,,,TEE-WHT-M,White,M,100.00,80.00,5
canvas-cap,Canvas Cap,Cap,tops,,CAP-OS,Olive,One Size,20,,
travel-mug,Travel Mug,Mug,kitchen-goods,,MUG-1,,,12.50,,3`

	repo := &stubProductRepo{}
	catRepo := &stubCategoryRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, catRepo, nil)

	stats, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if stats.Products != 3 || stats.Variants != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	tee := repo.items[0]
	if tee.Key != "classic-tee" || len(tee.Variants) != 2 || tee.CategoryID != "cat-tops" {
		t.Fatalf("unexpected product data: %+v", tee)
	}
	if sale := tee.Variants[1].SalePrice; sale == nil || sale.StringFixed(2) != "80.00" {
		t.Fatalf("expected sale price on continuation row, got %v", sale)
	}
	if tee.Variants[0].InStock != 25 {
		t.Fatalf("expected stock 25, got %d", tee.Variants[0].InStock)
	}

	if len(catRepo.items) != 2 {
		t.Fatalf("expected each category upserted once, got %+v", catRepo.items)
	}
	if catRepo.items[1].Name != "Kitchen Goods" {
		t.Fatalf("expected derived category name, got %q", catRepo.items[1].Name)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing column": "key,name,sku\np,P,S",
		"bad price":      "key,name,sku,price\np,P,S,abc",
		"orphan variant": "key,name,sku,price\n,,S,1.00",
		"no name":        "key,name,sku,price\np,,S,1.00",
		"negative stock": "key,name,sku,price,stock\np,P,S,1.00,-1",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			imp := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, &stubCategoryRepo{}, nil)
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

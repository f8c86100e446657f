package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type categoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type productWriter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type variantSeed struct {
	SKU       string
	Color     string
	Size      string
	Price     string
	SalePrice string
	InStock   int
}

type productSeed struct {
	Key         string
	Category    string
	Name        string
	Description string
	ImageURL    string
	Variants    []variantSeed
}

var categories = []domain.Category{
	{Key: "tops", Name: "Tops"},
	{Key: "accessories", Name: "Accessories"},
}

var products = []productSeed{
	{
		Key:         "classic-tee",
		Category:    "tops",
		Name:        "Classic Tee",
		Description: "Heavyweight cotton tee",
		ImageURL:    "/images/classic-tee.jpg",
		Variants: []variantSeed{
			{SKU: "TEE-BLK-M", Color: "Black", Size: "M", Price: "100.00", InStock: 25},
			{SKU: "TEE-BLK-L", Color: "Black", Size: "L", Price: "100.00", InStock: 10},
			{SKU: "TEE-WHT-M", Color: "White", Size: "M", Price: "100.00", SalePrice: "80.00", InStock: 5},
		},
	},
	{
		Key:         "canvas-cap",
		Category:    "accessories",
		Name:        "Canvas Cap",
		Description: "Six panel cap",
		ImageURL:    "/images/canvas-cap.jpg",
		Variants: []variantSeed{
			{SKU: "CAP-OLV-OS", Color: "Olive", Size: "One Size", Price: "20.00", InStock: 40},
		},
	},
}

// Result counts what Apply wrote.
type Result struct {
	Categories int
	Products   int
	Variants   int
}

// Apply upserts the demo catalog. Running it again updates rows in place.
func Apply(ctx context.Context, cats categoryWriter, prods productWriter, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result

	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		saved, err := cats.Upsert(ctx, c)
		if err != nil {
			return res, fmt.Errorf("upsert category %s: %w", c.Key, err)
		}
		categoryIDs[saved.Key] = saved.ID
		res.Categories++
	}

	for _, p := range products {
		product, err := p.build(categoryIDs)
		if err != nil {
			return res, err
		}
		saved, err := prods.Upsert(ctx, product)
		if err != nil {
			return res, fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
		res.Products++
		res.Variants += len(saved.Variants)
	}

	logger.Info("seed applied",
		zap.Int("categories", res.Categories),
		zap.Int("products", res.Products),
		zap.Int("variants", res.Variants),
	)
	return res, nil
}

func (p productSeed) build(categoryIDs map[string]string) (domain.Product, error) {
	out := domain.Product{
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  categoryIDs[p.Category],
		ImageURL:    p.ImageURL,
	}
	for _, v := range p.Variants {
		price, err := decimal.NewFromString(v.Price)
		if err != nil {
			return domain.Product{}, fmt.Errorf("variant %s price: %w", v.SKU, err)
		}
		variant := domain.Variant{SKU: v.SKU, Color: v.Color, Size: v.Size, Price: price, InStock: v.InStock}
		if v.SalePrice != "" {
			sale, err := decimal.NewFromString(v.SalePrice)
			if err != nil {
				return domain.Product{}, fmt.Errorf("variant %s sale price: %w", v.SKU, err)
			}
			variant.SalePrice = &sale
		}
		out.Variants = append(out.Variants, variant)
	}
	return out, nil
}

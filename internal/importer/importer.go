package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (*domain.Category, error)
}

// CSVImporter reads catalog CSV files and inserts/updates products with their variants.
//
// Expected headers: key, name, description, category, image, sku, color, size, price,
// sale_price, stock. A row with a key starts a product; following rows with an empty key
// add more variants to it.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	logger     *zap.Logger

	categoryIDs map[string]string
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVImporter{
		reader:      csvr,
		products:    products,
		categories:  categories,
		logger:      logger.Named("importer"),
		categoryIDs: map[string]string{},
	}
}

// Stats summarizes one import run.
type Stats struct {
	Products int
	Variants int
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	headers, err := i.reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"key", "sku", "price"} {
		if _, ok := index[required]; !ok {
			return stats, fmt.Errorf("missing required column %q", required)
		}
	}

	var current *productRow
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := i.save(ctx, current); err != nil {
			return err
		}
		stats.Products++
		stats.Variants += len(current.variants)
		return nil
	}

	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row: %w", err)
		}
		line++

		if key := pick(record, index, "key"); key != "" {
			if err := flush(); err != nil {
				return stats, err
			}
			current = &productRow{
				key:         key,
				name:        pick(record, index, "name"),
				description: pick(record, index, "description"),
				category:    strings.ToLower(pick(record, index, "category")),
				image:       pick(record, index, "image"),
			}
		}
		if pick(record, index, "sku") == "" {
			continue
		}
		if current == nil {
			return stats, fmt.Errorf("line %d: variant row before any product row", line)
		}
		v, err := parseVariant(record, index)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		current.variants = append(current.variants, v)
	}

	if err := flush(); err != nil {
		return stats, err
	}
	i.logger.Info("catalog import finished", zap.Int("products", stats.Products), zap.Int("variants", stats.Variants))
	return stats, nil
}

type productRow struct {
	key         string
	name        string
	description string
	category    string
	image       string
	variants    []domain.Variant
}

func (i *CSVImporter) save(ctx context.Context, row *productRow) error {
	if row.name == "" || len(row.variants) == 0 {
		return fmt.Errorf("invalid product row (missing required fields) for key %q", row.key)
	}
	categoryID, err := i.categoryID(ctx, row.category)
	if err != nil {
		return err
	}
	p := domain.Product{
		Key:         row.key,
		Name:        row.name,
		Description: row.description,
		CategoryID:  categoryID,
		ImageURL:    row.image,
		Variants:    row.variants,
	}
	if _, err := i.products.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.key, err)
	}
	return nil
}

// categoryID upserts each category key once per run.
func (i *CSVImporter) categoryID(ctx context.Context, key string) (string, error) {
	if key == "" || i.categories == nil {
		return "", nil
	}
	if id, ok := i.categoryIDs[key]; ok {
		return id, nil
	}
	c, err := i.categories.Upsert(ctx, domain.Category{Key: key, Name: titleCase(key)})
	if err != nil {
		return "", fmt.Errorf("upsert category %q: %w", key, err)
	}
	i.categoryIDs[key] = c.ID
	return c.ID, nil
}

func parseVariant(record []string, index map[string]int) (domain.Variant, error) {
	sku := pick(record, index, "sku")
	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return domain.Variant{}, fmt.Errorf("sku %s: invalid price: %w", sku, err)
	}
	v := domain.Variant{
		SKU:   sku,
		Color: pick(record, index, "color"),
		Size:  pick(record, index, "size"),
		Price: price,
	}
	if raw := pick(record, index, "sale_price"); raw != "" {
		sale, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Variant{}, fmt.Errorf("sku %s: invalid sale price: %w", sku, err)
		}
		v.SalePrice = &sale
	}
	if raw := pick(record, index, "stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.Variant{}, fmt.Errorf("sku %s: invalid stock %q", sku, raw)
		}
		v.InStock = n
	}
	return v, nil
}

func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const defaultListLimit = 100

const productColumns = `p.id::text, p.key, p.name, COALESCE(p.description, ''), COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), COALESCE(p.image_url, ''), p.created_at`

const variantColumns = `id::text, product_id::text, sku, color, size, price::text, sale_price::text, in_stock, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

func (r *postgresRepo) List(ctx context.Context, filter ListFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	q := `
SELECT ` + productColumns + `
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
WHERE ($1::text = '' OR c.key = $1::text)
ORDER BY p.created_at DESC, p.id
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, filter.CategoryKey, limit)
	if err != nil {
		r.logger.Error("list products", zap.String("category", filter.CategoryKey), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	result := []domain.Product{}
	index := map[string]int{}
	var ids []string
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(result)
		ids = append(ids, p.ID)
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		i := index[v.ProductID]
		result[i].Variants = append(result[i].Variants, v)
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `
SELECT ` + productColumns + `
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
WHERE p.id = $1
`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	variants, err := r.variantsFor(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Variants = variants
	return p, nil
}

func (r *postgresRepo) GetVariant(ctx context.Context, id string) (*domain.Variant, error) {
	return scanVariant(r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = $1`, id))
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const upsertProduct = `
INSERT INTO products (key, name, description, category_id, image_url)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, '')::uuid, NULLIF($5, ''))
ON CONFLICT (key) DO UPDATE
SET name = EXCLUDED.name,
    description = COALESCE(EXCLUDED.description, products.description),
    category_id = COALESCE(EXCLUDED.category_id, products.category_id),
    image_url = COALESCE(EXCLUDED.image_url, products.image_url)
RETURNING id::text, created_at
`
	out := p
	if err := tx.QueryRow(ctx, upsertProduct, p.Key, p.Name, p.Description, p.CategoryID, p.ImageURL).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert product %s: %w", p.Key, mapErr(err))
	}

	const upsertVariant = `
INSERT INTO variants (product_id, sku, color, size, price, sale_price, in_stock)
VALUES ($1, $2, $3, $4, $5::numeric, NULLIF($6, '')::numeric, $7)
ON CONFLICT (sku) DO UPDATE
SET color = EXCLUDED.color,
    size = EXCLUDED.size,
    price = EXCLUDED.price,
    sale_price = EXCLUDED.sale_price,
    in_stock = EXCLUDED.in_stock
RETURNING ` + variantColumns

	out.Variants = make([]domain.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		sale := ""
		if v.SalePrice != nil {
			sale = v.SalePrice.String()
		}
		saved, err := scanVariant(tx.QueryRow(ctx, upsertVariant, out.ID, v.SKU, v.Color, v.Size, v.Price.String(), sale, v.InStock))
		if err != nil {
			return nil, fmt.Errorf("upsert variant %s: %w", v.SKU, mapErr(err))
		}
		out.Variants = append(out.Variants, *saved)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("upserted product", zap.String("key", out.Key), zap.Int("variants", len(out.Variants)))
	return &out, nil
}

func (r *postgresRepo) variantsFor(ctx context.Context, productIDs []string) ([]domain.Variant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+variantColumns+`
FROM variants
WHERE product_id::text = ANY($1::text[])
ORDER BY created_at ASC, sku ASC
`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Key,
		&p.Name,
		&p.Description,
		&p.CategoryID,
		&p.Category,
		&p.ImageURL,
		&p.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var v domain.Variant
	var sale decimal.NullDecimal
	if err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.Color,
		&v.Size,
		&v.Price,
		&sale,
		&v.InStock,
		&v.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	if sale.Valid {
		s := sale.Decimal
		v.SalePrice = &s
	}
	return &v, nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23503":
			return domain.ErrNotFound
		case "23505":
			return domain.ErrAlreadyExists
		}
	}
	return err
}

package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

const getOrCreateAttempts = 3

const cartColumns = `id::text, customer_id::text, guest_token, created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetOrCreate(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "is required")
	}
	customerID, guestToken := owner.Columns()

	const insert = `
INSERT INTO carts (customer_id, guest_token)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
RETURNING ` + cartColumns

	// The insert loses to a concurrent writer when the owner's row already exists;
	// the follow-up read can in turn miss a row deleted in between, so retry.
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		cart, err := scanCart(r.pool.QueryRow(ctx, insert, customerID, guestToken))
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, mapWriteErr(err)
		}

		cart, err = r.GetByOwner(ctx, owner)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("cart for %s: insert-or-fetch did not settle", owner)
}

func (r *postgresRepo) GetByOwner(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + cartColumns + ` FROM carts WHERE customer_id = $1`
	if owner.IsGuest() {
		q = `SELECT ` + cartColumns + ` FROM carts WHERE guest_token = $1`
	}
	return r.fetchCart(ctx, q, owner.ID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
}

func (r *postgresRepo) ListItems(ctx context.Context, cartID string) ([]domain.CartItemView, error) {
	const q = `
SELECT cl.id::text, cl.variant_id::text, p.id::text, p.name,
       v.price::text, v.sale_price::text, COALESCE(p.image_url, ''),
       v.color, v.size, cl.quantity, v.in_stock, COALESCE(c.name, '')
FROM cart_lines cl
JOIN variants v ON v.id = cl.variant_id
JOIN products p ON p.id = v.product_id
LEFT JOIN categories c ON c.id = p.category_id
WHERE cl.cart_id = $1
ORDER BY cl.created_at ASC, cl.id ASC
`
	rows, err := r.pool.Query(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.CartItemView{}
	for rows.Next() {
		var item domain.CartItemView
		var sale decimal.NullDecimal
		if err := rows.Scan(
			&item.ID,
			&item.VariantID,
			&item.ProductID,
			&item.Name,
			&item.Price,
			&sale,
			&item.Image,
			&item.Color,
			&item.Size,
			&item.Quantity,
			&item.MaxStock,
			&item.Category,
		); err != nil {
			return nil, err
		}
		if sale.Valid {
			s := sale.Decimal
			item.SalePrice = &s
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *postgresRepo) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be a positive integer")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const upsert = `
INSERT INTO cart_lines (cart_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT ON CONSTRAINT cart_lines_cart_variant_key
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
RETURNING id::text, cart_id::text, variant_id::text, quantity, created_at
`
	var line domain.CartLine
	if err := tx.QueryRow(ctx, upsert, cartID, variantID, quantity).Scan(
		&line.ID,
		&line.CartID,
		&line.VariantID,
		&line.Quantity,
		&line.CreatedAt,
	); err != nil {
		return nil, mapWriteErr(err)
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) error {
	if quantity <= 0 {
		return r.RemoveLine(ctx, cartID, lineID)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1
WHERE id = $2 AND cart_id = $3
`, quantity, lineID, cartID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) RemoveLine(ctx context.Context, cartID, lineID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND cart_id = $2`, lineID, cartID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) ClearLines(ctx context.Context, cartID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return mapWriteErr(err)
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) DeleteIfEmpty(ctx context.Context, cartID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The row lock waits out in-flight line writes, which hold a key share on the cart.
	var id string
	err = tx.QueryRow(ctx, `SELECT id::text FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	cmd, err := tx.Exec(ctx, `
DELETE FROM carts
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM cart_lines WHERE cart_id = $1)
`, cartID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCartNotEmpty
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) MoveLine(ctx context.Context, fromCartID, lineID, toCartID string) (MoveOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MoveGone, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
UPDATE cart_lines AS cl
SET cart_id = $3
WHERE cl.id = $1
  AND cl.cart_id = $2
  AND NOT EXISTS (
    SELECT 1 FROM cart_lines t
    WHERE t.cart_id = $3 AND t.variant_id = cl.variant_id
  )
`, lineID, fromCartID, toCartID)
	if err != nil {
		return MoveGone, mapWriteErr(err)
	}
	outcome := MoveRepointed

	if cmd.RowsAffected() == 0 {
		var variantID string
		var quantity int
		err := tx.QueryRow(ctx, `
DELETE FROM cart_lines
WHERE id = $1 AND cart_id = $2
RETURNING variant_id::text, quantity
`, lineID, fromCartID).Scan(&variantID, &quantity)
		if errors.Is(err, pgx.ErrNoRows) {
			return MoveGone, nil
		}
		if err != nil {
			return MoveGone, err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT ON CONSTRAINT cart_lines_cart_variant_key
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
`, toCartID, variantID, quantity); err != nil {
			return MoveGone, mapWriteErr(err)
		}
		outcome = MoveSummed
	}

	if err := touchCart(ctx, tx, fromCartID); err != nil {
		return MoveGone, err
	}
	if err := touchCart(ctx, tx, toCartID); err != nil {
		return MoveGone, err
	}
	if err := tx.Commit(ctx); err != nil {
		return MoveGone, err
	}
	return outcome, nil
}

func (r *postgresRepo) fetchCart(ctx context.Context, cartQuery string, args ...any) (*domain.Cart, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, cartQuery, args...))
	if err != nil {
		return nil, err
	}

	const linesQuery = `
SELECT id::text, cart_id::text, variant_id::text, quantity, created_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.VariantID,
			&line.Quantity,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var cart domain.Cart
	if err := row.Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.GuestToken,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

// touchCart advances updated_at strictly, so it can serve as the cart's version.
func touchCart(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `
UPDATE carts
SET updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
WHERE id = $1
`, cartID)
	return err
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// mapWriteErr translates constraint violations into domain errors.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "22P02":
			// unknown variant, cart or guest session; malformed uuid
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrNotFound)
		case "23505":
			return domain.ErrAlreadyExists
		case "23514":
			return domain.NewValidationError("quantity", "must be a positive integer")
		}
	}
	return err
}

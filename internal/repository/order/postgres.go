package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const orderColumns = `id::text, customer_id::text, guest_token, provider_session_id, customer_email, customer_name,
       status::text, total_amount::text, currency, shipping_address_id::text, billing_address_id::text, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("order_repo")}
}

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider_session_id = $1`, sessionID))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	var a domain.Address
	err = r.pool.QueryRow(ctx, `
SELECT id::text, customer_id::text, kind, line1, line2, city, state, country, postal_code, created_at
FROM addresses
WHERE id = $1
`, o.ShippingAddressID).Scan(
		&a.ID,
		&a.CustomerID,
		&a.Kind,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.State,
		&a.Country,
		&a.PostalCode,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	o.ShippingAddress = &a

	rows, err := r.pool.Query(ctx, `
SELECT id::text, order_id::text, variant_id::text, quantity, price_at_purchase::text
FROM order_items
WHERE order_id = $1
ORDER BY id
`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) Materialize(ctx context.Context, in MaterializeInput) (string, bool, error) {
	if !in.Owner.Valid() {
		return "", false, fmt.Errorf("%w: order owner missing", domain.ErrInvariant)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	// Locking the cart serializes concurrent materializations of the same checkout; the
	// loser finds the cart gone once the winner commits.
	var cartCustomer, cartGuest *string
	err = tx.QueryRow(ctx, `
SELECT customer_id::text, guest_token
FROM carts
WHERE id = $1
FOR UPDATE
`, in.CartID).Scan(&cartCustomer, &cartGuest)
	if err != nil {
		return "", false, mapErr(err)
	}
	if owner := (domain.Cart{CustomerID: cartCustomer, GuestToken: cartGuest}).Owner(); owner != in.Owner {
		return "", false, fmt.Errorf("%w: cart %s is owned by %s, session names %s", domain.ErrInvariant, in.CartID, owner, in.Owner)
	}

	var lines int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM cart_lines WHERE cart_id = $1`, in.CartID).Scan(&lines); err != nil {
		return "", false, err
	}
	if lines == 0 {
		return "", false, domain.ErrEmptyCart
	}

	customerID, guestToken := in.Owner.Columns()
	addr := in.Shipping
	var addressID string
	if err := tx.QueryRow(ctx, `
INSERT INTO addresses (customer_id, kind, line1, line2, city, state, country, postal_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text
`, customerID, defaultString(addr.Kind, "shipping"), addr.Line1, addr.Line2, addr.City, addr.State, addr.Country, addr.PostalCode).Scan(&addressID); err != nil {
		return "", false, mapErr(err)
	}

	var orderID string
	err = tx.QueryRow(ctx, `
INSERT INTO orders (customer_id, guest_token, provider_session_id, customer_email, customer_name,
                    status, total_amount, currency, shipping_address_id, billing_address_id)
VALUES ($1, $2, $3, $4, $5, 'paid', $6::numeric, $7, $8, $8)
ON CONFLICT (provider_session_id) DO NOTHING
RETURNING id::text
`, customerID, guestToken, in.SessionID, in.CustomerEmail, in.CustomerName,
		in.TotalAmount.String(), strings.ToLower(in.Currency), addressID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Another call already produced the order for this session.
		if err := tx.Rollback(ctx); err != nil {
			return "", false, err
		}
		existing, err := r.GetBySessionID(ctx, in.SessionID)
		if err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return "", false, mapErr(err)
	}

	// Prices are read at this instant from the variants, not from any cached view.
	if _, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, variant_id, quantity, price_at_purchase)
SELECT $1, cl.variant_id, cl.quantity, LEAST(v.price, COALESCE(v.sale_price, v.price))
FROM cart_lines cl
JOIN variants v ON v.id = cl.variant_id
WHERE cl.cart_id = $2
`, orderID, in.CartID); err != nil {
		return "", false, mapErr(err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO payments (order_id, method, status, transaction_id, paid_at)
VALUES ($1, $2, $3, NULLIF($4, ''), now())
`, orderID, defaultString(in.PaymentMethod, "card"), defaultString(in.PaymentStatus, "paid"), in.TransactionID); err != nil {
		return "", false, mapErr(err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, in.CartID); err != nil {
		return "", false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, in.CartID); err != nil {
		return "", false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, err
	}
	r.logger.Info("order materialized",
		zap.String("order_id", orderID),
		zap.String("session_id", in.SessionID),
		zap.String("cart_id", in.CartID),
		zap.Int("lines", lines),
	)
	return orderID, true, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders
SET status = $3::order_status, updated_at = now()
WHERE id = $1 AND status = $2::order_status
`, id, string(from), string(to))
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	if err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.GuestToken,
		&o.ProviderSessionID,
		&o.CustomerEmail,
		&o.CustomerName,
		&status,
		&o.TotalAmount,
		&o.Currency,
		&o.ShippingAddressID,
		&o.BillingAddressID,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			return domain.ErrNotFound
		case "23503":
			return fmt.Errorf("%w: %s", domain.ErrInvariant, pgErr.ConstraintName)
		case "23505":
			return domain.ErrAlreadyExists
		}
	}
	return err
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

package guest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, s domain.GuestSession) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO guest_sessions (token, created_at, expires_at)
VALUES ($1, $2, $3)
`, s.Token, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*domain.GuestSession, error) {
	var s domain.GuestSession
	err := r.pool.QueryRow(ctx, `
SELECT token, created_at, expires_at
FROM guest_sessions
WHERE token = $1
`, token).Scan(&s.Token, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Locking the session blocks new carts for it; locking its cart waits out line writes.
	var locked string
	err = tx.QueryRow(ctx, `SELECT token FROM guest_sessions WHERE token = $1 FOR UPDATE`, token).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT id FROM carts WHERE guest_token = $1 FOR UPDATE`, token); err != nil {
		return err
	}

	var hasLines bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1
  FROM cart_lines l
  JOIN carts c ON c.id = l.cart_id
  WHERE c.guest_token = $1
)
`, token).Scan(&hasLines); err != nil {
		return err
	}
	if hasLines {
		return domain.ErrCartNotEmpty
	}

	if _, err := tx.Exec(ctx, `DELETE FROM guest_sessions WHERE token = $1`, token); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM guest_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

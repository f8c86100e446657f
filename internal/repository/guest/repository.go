package guest

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// Repository persists guest sessions. Expiry is checked by callers on read.
type Repository interface {
	Create(ctx context.Context, s domain.GuestSession) error
	Get(ctx context.Context, token string) (*domain.GuestSession, error)
	// Delete removes a session together with its cart if that cart is empty. It returns
	// domain.ErrCartNotEmpty and keeps the session when the cart still holds lines.
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes sessions expired at now, cascading to their carts.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	guestrepo "storefront/internal/repository/guest"
)

// DefaultTTL is the absolute lifetime of a guest session.
const DefaultTTL = 7 * 24 * time.Hour

// Service issues and resolves anonymous shopper sessions.
type Service struct {
	repo   guestrepo.Repository
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func New(repo guestrepo.Repository, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, ttl: ttl, now: time.Now, logger: logger.Named("guest")}
}

// TTL returns the session lifetime, used for the cookie max-age.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new guest session with a random v4 token.
func (s *Service) Issue(ctx context.Context) (*domain.GuestSession, error) {
	now := s.now().UTC()
	for i := 0; i < 3; i++ {
		session := domain.GuestSession{
			Token:     uuid.NewString(),
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		err := s.repo.Create(ctx, session)
		if err == nil {
			s.logger.Debug("guest session issued", zap.Time("expires_at", session.ExpiresAt))
			return &session, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
	}
	return nil, errors.New("guest token collision")
}

// Lookup resolves a token. Unknown and expired sessions both yield domain.ErrNotFound;
// expired rows are left in place for the reaper.
func (s *Service) Lookup(ctx context.Context, token string) (*domain.GuestSession, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, domain.ErrNotFound
	}
	session, err := s.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, fmt.Errorf("guest session expired: %w", domain.ErrNotFound)
	}
	return session, nil
}

// Retire deletes a guest session and its empty cart. Retiring an unknown session is not
// an error; a session whose cart still holds lines is kept and domain.ErrCartNotEmpty returned.
func (s *Service) Retire(ctx context.Context, token string) error {
	err := s.repo.Delete(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// ReapExpired deletes sessions past their expiry together with their carts.
func (s *Service) ReapExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("reaped expired guest sessions", zap.Int64("count", n))
	}
	return n, nil
}

package guest

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
)

type memoryRepo struct {
	sessions map[string]domain.GuestSession
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: map[string]domain.GuestSession{}}
}

func (r *memoryRepo) Create(_ context.Context, s domain.GuestSession) error {
	if _, ok := r.sessions[s.Token]; ok {
		return domain.ErrAlreadyExists
	}
	r.sessions[s.Token] = s
	return nil
}

func (r *memoryRepo) Get(_ context.Context, token string) (*domain.GuestSession, error) {
	s, ok := r.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *memoryRepo) Delete(_ context.Context, token string) error {
	if _, ok := r.sessions[token]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, token)
	return nil
}

func (r *memoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

func TestIssueAndLookup(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, 0, nil)
	ctx := context.Background()

	s, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != 7*24*time.Hour {
		t.Fatalf("expected 7 day lifetime, got %s", got)
	}
	if _, err := svc.Lookup(ctx, s.Token); err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func TestLookupExpiredIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, time.Hour, nil)
	ctx := context.Background()

	s, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = func() time.Time { return s.ExpiresAt }

	if _, err := svc.Lookup(ctx, s.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}
	if _, ok := repo.sessions[s.Token]; !ok {
		t.Fatalf("lookup must not delete expired sessions")
	}

	n, err := svc.ReapExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one reaped session, got %d err=%v", n, err)
	}
}

func TestLookupRejectsMalformedToken(t *testing.T) {
	svc := New(newMemoryRepo(), 0, nil)
	if _, err := svc.Lookup(context.Background(), "../../etc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetireIsIdempotent(t *testing.T) {
	svc := New(newMemoryRepo(), 0, nil)
	ctx := context.Background()
	s, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Retire(ctx, s.Token); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if err := svc.Retire(ctx, s.Token); err != nil {
		t.Fatalf("second retire: %v", err)
	}
	if _, err := svc.Lookup(ctx, s.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("retired session must not resolve, got %v", err)
	}
}

package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	tokenrepo "storefront/internal/repository/token"
)

// memoryRepo is a lightweight in-memory customer repository for tests.
type memoryRepo struct {
	byEmail map[string]domain.Customer
}

type memoryTokenRepo struct {
	tokens map[string]tokenrepo.Token
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: make(map[string]domain.Customer)}
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]tokenrepo.Token)}
}

func (r *memoryTokenRepo) Create(_ context.Context, token tokenrepo.Token) error {
	if _, exists := r.tokens[token.Token]; exists {
		return domain.ErrAlreadyExists
	}
	r.tokens[token.Token] = token
	return nil
}

func (r *memoryTokenRepo) Get(_ context.Context, token string) (*tokenrepo.Token, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := t
	return &clone, nil
}

func (r *memoryTokenRepo) Delete(_ context.Context, token string) error {
	if _, ok := r.tokens[token]; !ok {
		return domain.ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *memoryTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if _, exists := r.byEmail[c.Email]; exists {
		return nil, domain.ErrAlreadyExists
	}
	clone := c
	if clone.ID == "" {
		clone.ID = "cust-" + c.Email
	}
	r.byEmail[clone.Email] = clone
	return &clone, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	if c, ok := r.byEmail[email]; ok {
		clone := c
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	for _, c := range r.byEmail {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestSignupAndLogin_SucceedsWithTrimmedPassword(t *testing.T) {
	svc := New(newMemoryRepo(), newMemoryTokenRepo(), nil)
	ctx := context.Background()

	customer, session, err := svc.Signup(ctx, SignupInput{
		Email:    "User@Example.com",
		Password: " Abcdefg1 ",
		Name:     "T User",
	})
	if err != nil {
		t.Fatalf("signup returned error: %v", err)
	}
	if customer == nil || customer.Email != "user@example.com" {
		t.Fatalf("unexpected customer %+v", customer)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected signup to issue a session")
	}

	_, session, err = svc.Login(ctx, "user@example.com", "Abcdefg1")
	if err != nil {
		t.Fatalf("login failed with trimmed password: %v", err)
	}

	got, err := svc.LookupByToken(ctx, session.AccessToken)
	if err != nil || got.ID != customer.ID {
		t.Fatalf("lookup: got %+v err=%v", got, err)
	}
}

func TestSignup_ReportsFieldErrors(t *testing.T) {
	svc := New(newMemoryRepo(), newMemoryTokenRepo(), nil)

	_, _, err := svc.Signup(context.Background(), SignupInput{Email: "nope", Password: "short"})
	verr, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields["email"]) == 0 || len(verr.Fields["password"]) == 0 {
		t.Fatalf("expected email and password errors, got %v", verr.Fields)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc := New(newMemoryRepo(), newMemoryTokenRepo(), nil)
	ctx := context.Background()
	in := SignupInput{Email: "dup@example.com", Password: "Abcdefg1"}

	if _, _, err := svc.Signup(ctx, in); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := svc.Signup(ctx, in)
	verr, ok := domain.AsValidation(err)
	if !ok || len(verr.Fields["email"]) == 0 {
		t.Fatalf("expected email validation error, got %v", err)
	}
}

func TestValidatePassword_FailsOnWeakValues(t *testing.T) {
	cases := []struct {
		name string
		pass string
	}{
		{"too short", "Abc1"},
		{"no upper", "abcdefg1"},
		{"no lower", "ABCDEFG1"},
		{"no digit", "Abcdefgh"},
	}
	for _, tc := range cases {
		if msg := validatePassword(tc.pass, 8); msg == "" {
			t.Fatalf("expected error for case %s", tc.name)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := New(newMemoryRepo(), newMemoryTokenRepo(), nil)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "user@example.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "missing@example.com", "Abcdefg1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for missing user, got %v", err)
	}
	if !errors.Is(ErrInvalidCredentials, domain.ErrUnauthorized) {
		t.Fatalf("invalid credentials must map to unauthorized")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	tokens := newMemoryTokenRepo()
	svc := New(newMemoryRepo(), tokens, nil)
	ctx := context.Background()

	_, session, err := svc.Signup(ctx, SignupInput{Email: "out@example.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.Logout(ctx, session.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.LookupByToken(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
	if err := svc.Logout(ctx, session.AccessToken); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
}

func TestLookupByToken_ExpiredIsDeleted(t *testing.T) {
	tokens := newMemoryTokenRepo()
	svc := New(newMemoryRepo(), tokens, nil)
	ctx := context.Background()

	c, _, err := svc.Signup(ctx, SignupInput{Email: "old@example.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	tokens.tokens["stale"] = tokenrepo.Token{Token: "stale", CustomerID: c.ID, Kind: tokenrepo.KindAccess, ExpiresAt: time.Now().Add(-time.Minute)}

	if _, err := svc.LookupByToken(ctx, "stale"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, ok := tokens.tokens["stale"]; ok {
		t.Fatalf("expected expired token to be deleted")
	}
}

package merge

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/cart/carttest"
)

type stubGuests struct {
	retired []string
}

func (s *stubGuests) Retire(_ context.Context, token string) error {
	s.retired = append(s.retired, token)
	return nil
}

type stubViews struct {
	invalidated []domain.OwnerKey
}

func (s *stubViews) Invalidate(_ context.Context, owner domain.OwnerKey) {
	s.invalidated = append(s.invalidated, owner)
}

// flakyRepo fails MoveLine for one line id.
type flakyRepo struct {
	*carttest.Memory
	failLine string
}

func (f *flakyRepo) MoveLine(ctx context.Context, from, lineID, to string) (cartrepo.MoveOutcome, error) {
	if lineID == f.failLine {
		return cartrepo.MoveGone, errors.New("connection reset")
	}
	return f.Memory.MoveLine(ctx, from, lineID, to)
}

func seed(t *testing.T) *carttest.Memory {
	t.Helper()
	repo := carttest.NewMemory()
	repo.PutVariant(domain.CartItemView{VariantID: "A"})
	repo.PutVariant(domain.CartItemView{VariantID: "B"})
	return repo
}

func addLines(t *testing.T, repo cartrepo.Repository, owner domain.OwnerKey, lines map[string]int) *domain.Cart {
	t.Helper()
	ctx := context.Background()
	c, err := repo.GetOrCreate(ctx, owner)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	for _, variant := range []string{"A", "B"} {
		if qty, ok := lines[variant]; ok {
			if _, err := repo.AddLine(ctx, c.ID, variant, qty); err != nil {
				t.Fatalf("AddLine: %v", err)
			}
		}
	}
	return c
}

func quantities(t *testing.T, repo cartrepo.Repository, owner domain.OwnerKey) map[string]int {
	t.Helper()
	c, err := repo.GetByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetByOwner: %v", err)
	}
	out := map[string]int{}
	for _, l := range c.Lines {
		out[l.VariantID] = l.Quantity
	}
	return out
}

func TestMergeSumsAndRepoints(t *testing.T) {
	repo := seed(t)
	guests := &stubGuests{}
	views := &stubViews{}
	engine := New(repo, guests, views, nil)
	ctx := context.Background()

	guestOwner := domain.GuestOwner("guest-1")
	userOwner := domain.UserOwner("user-1")
	addLines(t, repo, guestOwner, map[string]int{"A": 2, "B": 1})
	addLines(t, repo, userOwner, map[string]int{"A": 1})

	res, err := engine.Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Summed != 1 || res.Repointed != 1 || !res.Retired {
		t.Fatalf("unexpected result %+v", res)
	}

	got := quantities(t, repo, userOwner)
	if got["A"] != 3 || got["B"] != 1 || len(got) != 2 {
		t.Fatalf("expected {A:3, B:1}, got %v", got)
	}
	if _, err := repo.GetByOwner(ctx, guestOwner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("guest cart must be gone, got %v", err)
	}
	if len(guests.retired) != 1 || guests.retired[0] != "guest-1" {
		t.Fatalf("expected guest session retired, got %v", guests.retired)
	}
	if len(views.invalidated) < 2 {
		t.Fatalf("expected both cached views invalidated, got %v", views.invalidated)
	}
}

func TestMergeTwiceIsNoop(t *testing.T) {
	repo := seed(t)
	engine := New(repo, &stubGuests{}, &stubViews{}, nil)
	ctx := context.Background()

	userOwner := domain.UserOwner("user-1")
	addLines(t, repo, domain.GuestOwner("guest-1"), map[string]int{"A": 2, "B": 1})
	addLines(t, repo, userOwner, map[string]int{"A": 1})

	if _, err := engine.Merge(ctx, "guest-1", "user-1"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	before := quantities(t, repo, userOwner)

	res, err := engine.Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if res.Repointed+res.Summed != 0 {
		t.Fatalf("second merge moved lines: %+v", res)
	}
	after := quantities(t, repo, userOwner)
	if before["A"] != after["A"] || before["B"] != after["B"] {
		t.Fatalf("user cart changed on repeat merge: %v -> %v", before, after)
	}
}

func TestMergeEmptyGuestCartOnlyRetires(t *testing.T) {
	repo := seed(t)
	guests := &stubGuests{}
	engine := New(repo, guests, &stubViews{}, nil)
	ctx := context.Background()

	if _, err := repo.GetOrCreate(ctx, domain.GuestOwner("guest-1")); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	res, err := engine.Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.Retired || res.UserCartID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if repo.Count() != 0 {
		t.Fatalf("expected empty guest cart deleted and no user cart created, got %d carts", repo.Count())
	}
	if len(guests.retired) != 1 {
		t.Fatalf("expected guest retired")
	}
}

func TestMergeWithoutGuestToken(t *testing.T) {
	guests := &stubGuests{}
	engine := New(seed(t), guests, &stubViews{}, nil)
	res, err := engine.Merge(context.Background(), "", "user-1")
	if err != nil || res.Retired {
		t.Fatalf("expected no-op, got %+v err=%v", res, err)
	}
	if len(guests.retired) != 0 {
		t.Fatalf("nothing should be retired")
	}
}

func TestMergePartialFailureKeepsGuestForRetry(t *testing.T) {
	mem := seed(t)
	guests := &stubGuests{}
	ctx := context.Background()

	guestOwner := domain.GuestOwner("guest-1")
	userOwner := domain.UserOwner("user-1")
	guestCart := addLines(t, mem, guestOwner, map[string]int{"A": 2, "B": 1})
	c, _ := mem.GetByID(ctx, guestCart.ID)
	var lineB string
	for _, l := range c.Lines {
		if l.VariantID == "B" {
			lineB = l.ID
		}
	}

	flaky := &flakyRepo{Memory: mem, failLine: lineB}
	if _, err := New(flaky, guests, &stubViews{}, nil).Merge(ctx, "guest-1", "user-1"); err == nil {
		t.Fatalf("expected merge error")
	}
	if len(guests.retired) != 0 {
		t.Fatalf("guest must not be retired after a failed merge")
	}

	res, err := New(mem, guests, &stubViews{}, nil).Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Retired {
		t.Fatalf("expected retry to retire guest")
	}
	got := quantities(t, mem, userOwner)
	if got["A"] != 2 || got["B"] != 1 {
		t.Fatalf("expected all items after retry, got %v", got)
	}
}

// lateAddRepo adds a line to the guest cart right before its first empty-delete.
type lateAddRepo struct {
	*carttest.Memory
	guest   domain.OwnerKey
	variant string
	added   bool
}

func (r *lateAddRepo) DeleteIfEmpty(ctx context.Context, cartID string) error {
	if !r.added {
		r.added = true
		c, err := r.Memory.GetByOwner(ctx, r.guest)
		if err != nil {
			return err
		}
		if _, err := r.Memory.AddLine(ctx, c.ID, r.variant, 1); err != nil {
			return err
		}
	}
	return r.Memory.DeleteIfEmpty(ctx, cartID)
}

func TestMergeKeepsLineAddedDuringMerge(t *testing.T) {
	mem := seed(t)
	guests := &stubGuests{}
	ctx := context.Background()

	guestOwner := domain.GuestOwner("guest-1")
	userOwner := domain.UserOwner("user-1")
	addLines(t, mem, guestOwner, map[string]int{"A": 2})

	repo := &lateAddRepo{Memory: mem, guest: guestOwner, variant: "B"}
	res, err := New(repo, guests, &stubViews{}, nil).Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.Retired || res.Repointed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	got := quantities(t, mem, userOwner)
	if got["A"] != 2 || got["B"] != 1 {
		t.Fatalf("expected {A:2, B:1}, got %v", got)
	}
	if _, err := mem.GetByOwner(ctx, guestOwner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("guest cart must be gone, got %v", err)
	}
}

// refillingGuests refuses the first retirement after a line lands in a fresh guest cart.
type refillingGuests struct {
	stubGuests
	repo    *carttest.Memory
	refused bool
}

func (g *refillingGuests) Retire(ctx context.Context, token string) error {
	if !g.refused {
		g.refused = true
		c, err := g.repo.GetOrCreate(ctx, domain.GuestOwner(token))
		if err != nil {
			return err
		}
		if _, err := g.repo.AddLine(ctx, c.ID, "A", 1); err != nil {
			return err
		}
		return domain.ErrCartNotEmpty
	}
	return g.stubGuests.Retire(ctx, token)
}

func TestMergeRetriesWhenRetireFindsLines(t *testing.T) {
	mem := seed(t)
	guests := &refillingGuests{repo: mem}
	ctx := context.Background()

	userOwner := domain.UserOwner("user-1")
	addLines(t, mem, domain.GuestOwner("guest-1"), map[string]int{"A": 2})

	res, err := New(mem, guests, &stubViews{}, nil).Merge(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.Retired || len(guests.retired) != 1 {
		t.Fatalf("expected guest retired once, got %+v %v", res, guests.retired)
	}
	if got := quantities(t, mem, userOwner); got["A"] != 3 {
		t.Fatalf("expected A:3, got %v", got)
	}
}

// busyGuests always reports lines in the guest cart.
type busyGuests struct{}

func (busyGuests) Retire(context.Context, string) error { return domain.ErrCartNotEmpty }

func TestMergeGivesUpWhileGuestCartKeepsChanging(t *testing.T) {
	mem := seed(t)
	addLines(t, mem, domain.GuestOwner("guest-1"), map[string]int{"A": 1})

	res, err := New(mem, busyGuests{}, &stubViews{}, nil).Merge(context.Background(), "guest-1", "user-1")
	if !errors.Is(err, domain.ErrCartNotEmpty) {
		t.Fatalf("expected ErrCartNotEmpty, got %v", err)
	}
	if res.Retired {
		t.Fatalf("guest must not be reported retired")
	}
}

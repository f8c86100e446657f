package cart

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

const cacheOperation = "cart"

type variantRepo interface {
	GetVariant(ctx context.Context, id string) (*domain.Variant, error)
}

// Service implements cart reads and mutations keyed by owner. Cached views are keyed by
// the cart's updated_at, which every mutation advances, so a view cached from an older
// state is never served after a change commits.
type Service struct {
	repo     cartrepo.Repository
	variants variantRepo
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func New(repo cartrepo.Repository, variants variantRepo, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.NewNop("storefront")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, variants: variants, cache: c, cacheTTL: cacheTTL, logger: logger.Named("cart")}
}

// GetOrCreateCart returns the owner's cart, creating it on first use.
func (s *Service) GetOrCreateCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	return s.repo.GetOrCreate(ctx, owner)
}

// GetCart returns the owner's items with display data and subtotal. An owner without a
// cart gets an empty view; no cart is created.
func (s *Service) GetCart(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error) {
	if !owner.Valid() {
		return domain.NewCartView("", nil), nil
	}
	c, err := s.repo.GetByOwner(ctx, owner)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCartView("", nil), nil
	}
	if err != nil {
		return domain.CartView{}, err
	}

	key := s.cacheKey(c)
	var cached domain.CartView
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("cart cache read failed", zap.String("owner", owner.String()), zap.Error(err))
	} else if found {
		return cached, nil
	}

	view, err := s.viewOf(ctx, c.ID)
	if err != nil {
		return domain.CartView{}, err
	}
	if err := s.cache.Set(ctx, key, view, s.cacheTTL); err != nil {
		s.logger.Warn("cart cache write failed", zap.String("owner", owner.String()), zap.Error(err))
	}
	return view, nil
}

// ViewByID returns the view of a cart addressed by id, bypassing the cache.
func (s *Service) ViewByID(ctx context.Context, cartID string) (*domain.Cart, domain.CartView, error) {
	c, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, domain.CartView{}, err
	}
	view, err := s.viewOf(ctx, c.ID)
	if err != nil {
		return nil, domain.CartView{}, err
	}
	return c, view, nil
}

// AddItem adds quantity of a variant, incrementing an existing line for the same variant.
func (s *Service) AddItem(ctx context.Context, owner domain.OwnerKey, variantID string, quantity int) (domain.CartView, error) {
	variantID = strings.TrimSpace(variantID)
	verr := &domain.ValidationError{}
	if variantID == "" {
		verr.Add("variantId", "is required")
	}
	if quantity <= 0 {
		verr.Add("quantity", "must be a positive integer")
	}
	if !verr.Empty() {
		return domain.CartView{}, verr
	}

	if _, err := s.variants.GetVariant(ctx, variantID); err != nil {
		return domain.CartView{}, err
	}
	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	defer s.dropCached(ctx, c)

	if _, err := s.repo.AddLine(ctx, c.ID, variantID, quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.viewOf(ctx, c.ID)
}

// UpdateItem sets a line's quantity; zero or less removes the line. Quantities above the
// variant's stock are accepted.
func (s *Service) UpdateItem(ctx context.Context, owner domain.OwnerKey, itemID string, quantity int) (domain.CartView, error) {
	c, err := s.repo.GetByOwner(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	defer s.dropCached(ctx, c)

	if err := s.repo.SetLineQuantity(ctx, c.ID, itemID, quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.viewOf(ctx, c.ID)
}

// RemoveItem deletes a line from the owner's cart.
func (s *Service) RemoveItem(ctx context.Context, owner domain.OwnerKey, itemID string) (domain.CartView, error) {
	c, err := s.repo.GetByOwner(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	defer s.dropCached(ctx, c)

	if err := s.repo.RemoveLine(ctx, c.ID, itemID); err != nil {
		return domain.CartView{}, err
	}
	return s.viewOf(ctx, c.ID)
}

// Clear deletes every line in the owner's cart. Clearing a missing cart is a no-op.
func (s *Service) Clear(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error) {
	c, err := s.repo.GetByOwner(ctx, owner)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCartView("", nil), nil
	}
	if err != nil {
		return domain.CartView{}, err
	}
	defer s.dropCached(ctx, c)

	if err := s.repo.ClearLines(ctx, c.ID); err != nil {
		return domain.CartView{}, err
	}
	return domain.NewCartView(c.ID, nil), nil
}

// Invalidate drops the cached view of the owner's current cart. Views are keyed by cart
// version, so this frees space early rather than guarding reads.
func (s *Service) Invalidate(ctx context.Context, owner domain.OwnerKey) {
	if !owner.Valid() {
		return
	}
	c, err := s.repo.GetByOwner(ctx, owner)
	if err != nil {
		return
	}
	s.dropCached(ctx, c)
}

// dropCached removes the view cached for c's version.
func (s *Service) dropCached(ctx context.Context, c *domain.Cart) {
	if err := s.cache.Delete(ctx, s.cacheKey(c)); err != nil {
		s.logger.Warn("cart cache invalidation failed", zap.String("cart_id", c.ID), zap.Error(err))
	}
}

func (s *Service) viewOf(ctx context.Context, cartID string) (domain.CartView, error) {
	items, err := s.repo.ListItems(ctx, cartID)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.NewCartView(cartID, items), nil
}

func (s *Service) cacheKey(c *domain.Cart) string {
	version := strconv.FormatInt(c.UpdatedAt.UnixNano(), 10)
	return s.cache.GenerateKey(cacheOperation, c.Owner().String()+":"+version)
}

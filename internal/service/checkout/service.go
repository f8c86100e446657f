package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/payments"
)

// SessionPlaceholder is substituted by the payment provider with its session id.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type cartReader interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	ListItems(ctx context.Context, cartID string) ([]domain.CartItemView, error)
}

type customerReader interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

// Config holds checkout settings.
type Config struct {
	Currency      string
	PublicBaseURL string
}

// Service snapshots a cart into a hosted checkout session.
type Service struct {
	carts     cartReader
	customers customerReader
	provider  payments.Provider
	cfg       Config
	logger    *zap.Logger
}

func New(carts cartReader, customers customerReader, provider payments.Provider, cfg Config, logger *zap.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{carts: carts, customers: customers, provider: provider, cfg: cfg, logger: logger.Named("checkout")}
}

// Result is returned to the client, which redirects the browser to URL.
type Result struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// Start creates a checkout session for cartID on behalf of owner. The cart must belong to
// owner and hold at least one line.
func (s *Service) Start(ctx context.Context, owner domain.OwnerKey, cartID string) (Result, error) {
	if !owner.Valid() {
		return Result{}, fmt.Errorf("%w: no shopper session", domain.ErrUnauthorized)
	}
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Result{}, domain.NewValidationError("cartId", "is required")
	}

	c, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		return Result{}, err
	}
	if c.Owner() != owner {
		return Result{}, domain.ErrNotFound
	}
	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{}, domain.ErrEmptyCart
	}

	req := payments.CheckoutSessionRequest{
		Currency:   s.cfg.Currency,
		SuccessURL: s.cfg.PublicBaseURL + "/checkout/success?session_id=" + SessionPlaceholder,
		CancelURL:  s.cfg.PublicBaseURL + "/cart",
		Metadata:   map[string]string{payments.MetaCartID: c.ID},
		Items:      lineItems(items),
	}
	if owner.IsGuest() {
		req.Metadata[payments.MetaGuestID] = owner.ID
	} else {
		req.Metadata[payments.MetaUserID] = owner.ID
		customer, err := s.customers.GetByID(ctx, owner.ID)
		switch {
		case err == nil:
			req.CustomerEmail = customer.Email
		case errors.Is(err, domain.ErrNotFound):
			return Result{}, fmt.Errorf("%w: unknown customer", domain.ErrUnauthorized)
		default:
			return Result{}, err
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("create checkout session", zap.String("cart_id", c.ID), zap.Error(err))
		return Result{}, err
	}
	s.logger.Info("checkout started",
		zap.String("cart_id", c.ID),
		zap.String("session_id", session.ID),
		zap.String("owner_kind", string(owner.Kind)),
	)
	return Result{URL: session.RedirectURL, SessionID: session.ID}, nil
}

func lineItems(items []domain.CartItemView) []payments.LineItem {
	out := make([]payments.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, payments.LineItem{
			Name:        item.Name,
			Description: describe(item),
			ImageURL:    item.Image,
			Quantity:    int64(item.Quantity),
			Amount:      domain.MinorUnits(item.EffectivePrice()),
		})
	}
	return out
}

func describe(item domain.CartItemView) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{item.Color, item.Size} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}

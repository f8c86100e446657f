package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/payments"
	orderrepo "storefront/internal/repository/order"
)

const addressFallback = "N/A"

type cartInvalidator interface {
	Invalidate(ctx context.Context, owner domain.OwnerKey)
}

// Service turns confirmed payments into orders and serves order reads.
type Service struct {
	orders   orderrepo.Repository
	provider payments.Provider
	views    cartInvalidator
	currency string
	logger   *zap.Logger
}

func New(orders orderrepo.Repository, provider payments.Provider, views cartInvalidator, currency string, logger *zap.Logger) *Service {
	if currency == "" {
		currency = "usd"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{orders: orders, provider: provider, views: views, currency: currency, logger: logger.Named("order")}
}

// ConfirmBySessionID materializes the order for a provider session reached through the
// success redirect. Calling it again for the same session returns the same order id.
func (s *Service) ConfirmBySessionID(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", domain.NewValidationError("session_id", "is required")
	}

	conf, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: unknown checkout session %s", domain.ErrUpstream, sessionID)
		}
		return "", err
	}
	return s.Confirm(ctx, conf)
}

// Confirm materializes the order for an already retrieved confirmation. Both the redirect
// and the webhook path end here.
func (s *Service) Confirm(ctx context.Context, conf payments.SessionConfirmation) (string, error) {
	if existing, err := s.orders.GetBySessionID(ctx, conf.SessionID); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	log := s.logger.With(zap.String("session_id", conf.SessionID))

	cartID := conf.CartID()
	owner, hasOwner := conf.Owner()
	if cartID == "" || !hasOwner {
		log.Error("checkout session without cart metadata", zap.Any("metadata", conf.Metadata))
		return "", fmt.Errorf("%w: session %s lacks cart or owner metadata", domain.ErrInvariant, conf.SessionID)
	}
	if err := conf.Validate(); err != nil {
		log.Warn("checkout session not ready", zap.String("payment_status", string(conf.PaymentStatus)), zap.Error(err))
		return "", err
	}

	in := orderrepo.MaterializeInput{
		SessionID:     conf.SessionID,
		CartID:        cartID,
		Owner:         owner,
		CustomerEmail: conf.CustomerEmail,
		CustomerName:  conf.CustomerName,
		Currency:      firstNonEmpty(conf.Currency, s.currency),
		TotalAmount:   domain.FromMinorUnits(conf.AmountTotal),
		Shipping:      shippingAddress(conf.Shipping),
		PaymentMethod: "stripe",
		PaymentStatus: "completed",
		TransactionID: conf.PaymentIntentID,
	}

	orderID, created, err := s.orders.Materialize(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEmptyCart):
		// The cart was consumed by a concurrent confirmation of the same session.
		existing, lookupErr := s.orders.GetBySessionID(ctx, conf.SessionID)
		if lookupErr == nil {
			return existing.ID, nil
		}
		return "", err
	case errors.Is(err, domain.ErrInvariant):
		log.Error("order materialization rejected", zap.String("cart_id", cartID), zap.Error(err))
		return "", err
	default:
		log.Error("order materialization failed", zap.String("cart_id", cartID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrOrderCreation, err)
	}

	s.views.Invalidate(ctx, owner)
	if created {
		log.Info("order created", zap.String("order_id", orderID), zap.String("cart_id", cartID))
	}
	return orderID, nil
}

// Get returns an order visible to requester. Orders owned by someone else are reported
// as not found.
func (s *Service) Get(ctx context.Context, requester domain.OwnerKey, orderID string) (*domain.Order, error) {
	if !requester.Valid() {
		return nil, domain.ErrUnauthorized
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownedBy(o, requester) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// Transition moves an order to status next following the allowed lifecycle.
func (s *Service) Transition(ctx context.Context, orderID, next string) (*domain.Order, error) {
	to, ok := domain.ParseOrderStatus(strings.ToLower(strings.TrimSpace(next)))
	if !ok {
		return nil, domain.NewValidationError("status", "is not a known order status")
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(to) {
		return nil, domain.NewValidationError("status", fmt.Sprintf("cannot change from %s to %s", o.Status, to))
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("status", "was changed concurrently")
		}
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	return s.orders.GetByID(ctx, o.ID)
}

func ownedBy(o *domain.Order, requester domain.OwnerKey) bool {
	if requester.IsGuest() {
		return o.GuestToken != nil && *o.GuestToken == requester.ID
	}
	return o.CustomerID != nil && *o.CustomerID == requester.ID
}

func shippingAddress(d *payments.ShippingDetails) domain.Address {
	if d == nil {
		d = &payments.ShippingDetails{}
	}
	a := domain.Address{
		Kind:       "shipping",
		Line1:      firstNonEmpty(d.Line1, addressFallback),
		City:       firstNonEmpty(d.City, addressFallback),
		State:      firstNonEmpty(d.State, addressFallback),
		Country:    firstNonEmpty(d.Country, addressFallback),
		PostalCode: firstNonEmpty(d.PostalCode, addressFallback),
	}
	if line2 := strings.TrimSpace(d.Line2); line2 != "" {
		a.Line2 = &line2
	}
	return a
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

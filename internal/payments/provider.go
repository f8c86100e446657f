package payments

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
)

// Metadata keys attached to every checkout session.
const (
	MetaCartID  = "cartId"
	MetaUserID  = "userId"
	MetaGuestID = "guestId"
)

// PaymentStatus mirrors the provider's session payment status.
type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "paid"
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Provider creates hosted checkout sessions and reads them back.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionConfirmation, error)
}

// LineItem is a single priced line sent to the provider. Amount is in minor units.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	Quantity    int64
	Amount      int64
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
	Items         []LineItem
}

// CheckoutSession is the provider session returned to the client.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// ShippingDetails is the address collected by the hosted checkout page.
type ShippingDetails struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	Country    string
	PostalCode string
}

// SessionConfirmation is the provider's view of a completed checkout session.
type SessionConfirmation struct {
	SessionID       string
	PaymentStatus   PaymentStatus
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	CustomerName    string
	PaymentIntentID string
	Metadata        map[string]string
	Shipping        *ShippingDetails
}

// Paid reports whether the session needs no further payment action.
func (s SessionConfirmation) Paid() bool {
	return s.PaymentStatus == PaymentPaid || s.PaymentStatus == PaymentNoPaymentRequired
}

// CartID returns the cart id stored in metadata.
func (s SessionConfirmation) CartID() string {
	return strings.TrimSpace(s.Metadata[MetaCartID])
}

// Owner returns the identity stored in metadata, preferring the user id.
func (s SessionConfirmation) Owner() (domain.OwnerKey, bool) {
	if id := strings.TrimSpace(s.Metadata[MetaUserID]); id != "" {
		return domain.UserOwner(id), true
	}
	if token := strings.TrimSpace(s.Metadata[MetaGuestID]); token != "" {
		return domain.GuestOwner(token), true
	}
	return domain.OwnerKey{}, false
}

// Validate checks that the confirmation carries everything needed to build an order.
// Failures wrap domain.ErrUpstream.
func (s SessionConfirmation) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return fmt.Errorf("%w: session id missing", domain.ErrUpstream)
	}
	if s.CartID() == "" {
		return fmt.Errorf("%w: session %s has no cart metadata", domain.ErrUpstream, s.SessionID)
	}
	if _, ok := s.Owner(); !ok {
		return fmt.Errorf("%w: session %s has no owner metadata", domain.ErrUpstream, s.SessionID)
	}
	if !s.Paid() {
		return fmt.Errorf("%w: session %s payment status %q", domain.ErrUpstream, s.SessionID, s.PaymentStatus)
	}
	if s.AmountTotal < 0 {
		return fmt.Errorf("%w: session %s has negative total", domain.ErrUpstream, s.SessionID)
	}
	return nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

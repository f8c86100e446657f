package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

// EventCheckoutCompleted is the webhook event type that triggers order materialization.
const EventCheckoutCompleted = "checkout.session.completed"

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the StripeProvider.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        *zap.Logger
	Sessions      stripeSessionAPI
}

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	sessions      stripeSessionAPI
	webhookSecret string
	log           *zap.Logger
}

// NewStripeProvider constructs a Stripe provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		log:           log,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session in payment mode.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if len(req.Items) == 0 {
		return CheckoutSession{}, fmt.Errorf("stripe: %w", domain.ErrEmptyCart)
	}
	currency := strings.ToLower(defaultString(req.Currency, "usd"))

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{
			string(stripe.PaymentMethodTypeCard),
		}),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US", "CA", "GB", "DE", "FR"}),
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.Amount),
				ProductData: product,
			},
		})
	}
	params.LineItems = lineItems

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: stripe create checkout session: %v", domain.ErrUpstream, err)
	}
	if session.URL == "" {
		return CheckoutSession{}, fmt.Errorf("%w: stripe session %s has no url", domain.ErrUpstream, session.ID)
	}

	p.log.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("cart_id", req.Metadata[MetaCartID]),
		zap.Int("lines", len(lineItems)),
	)

	return CheckoutSession{ID: session.ID, RedirectURL: session.URL}, nil
}

// RetrieveSession loads a checkout session by id. Unknown sessions map to domain.ErrNotFound.
func (p *StripeProvider) RetrieveSession(ctx context.Context, sessionID string) (SessionConfirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionConfirmation{}, domain.NewValidationError("session_id", "is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.sessions.Get(sessionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return SessionConfirmation{}, fmt.Errorf("stripe session %s: %w", sessionID, domain.ErrNotFound)
		}
		return SessionConfirmation{}, fmt.Errorf("%w: stripe get session %s: %v", domain.ErrUpstream, sessionID, err)
	}
	return confirmationFromSession(session), nil
}

// ParseWebhook verifies the signature of a webhook payload. It returns ok=false for
// event types other than checkout completion.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (SessionConfirmation, bool, error) {
	if p.webhookSecret == "" {
		return SessionConfirmation{}, false, fmt.Errorf("%w: webhook secret not configured", domain.ErrUnauthorized)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return SessionConfirmation{}, false, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if string(event.Type) != EventCheckoutCompleted {
		return SessionConfirmation{}, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return SessionConfirmation{}, false, fmt.Errorf("%w: decode checkout session: %v", domain.ErrUpstream, err)
	}
	return confirmationFromSession(&session), true, nil
}

func confirmationFromSession(s *stripe.CheckoutSession) SessionConfirmation {
	out := SessionConfirmation{
		SessionID:     s.ID,
		PaymentStatus: PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.CustomerDetails != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = s.CustomerDetails.Email
		}
		out.CustomerName = s.CustomerDetails.Name
	}
	if s.ShippingDetails != nil && s.ShippingDetails.Address != nil {
		a := s.ShippingDetails.Address
		out.Shipping = &ShippingDetails{
			Name:       s.ShippingDetails.Name,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			Country:    a.Country,
			PostalCode: a.PostalCode,
		}
		if out.CustomerName == "" {
			out.CustomerName = s.ShippingDetails.Name
		}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

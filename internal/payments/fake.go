package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// FakeProvider is an in-memory Provider for local development and tests.
// Sessions it creates are reported as paid once retrieved.
type FakeProvider struct {
	mu       sync.Mutex
	sessions map[string]fakeSession
	// CheckoutBaseURL prefixes generated redirect urls.
	CheckoutBaseURL string
}

type fakeSession struct {
	req    CheckoutSessionRequest
	status PaymentStatus
}

// NewFakeProvider returns an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		sessions:        map[string]fakeSession{},
		CheckoutBaseURL: "https://checkout.stripe.com/c/pay",
	}
}

func (f *FakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if len(req.Items) == 0 {
		return CheckoutSession{}, domain.ErrEmptyCart
	}
	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = fakeSession{req: req, status: PaymentPaid}

	return CheckoutSession{
		ID:          id,
		RedirectURL: fmt.Sprintf("%s/%s", strings.TrimRight(f.CheckoutBaseURL, "/"), id),
	}, nil
}

func (f *FakeProvider) RetrieveSession(_ context.Context, sessionID string) (SessionConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[sessionID]
	if !ok {
		return SessionConfirmation{}, fmt.Errorf("fake session %s: %w", sessionID, domain.ErrNotFound)
	}
	var total int64
	for _, item := range s.req.Items {
		total += item.Amount * item.Quantity
	}
	meta := make(map[string]string, len(s.req.Metadata))
	for k, v := range s.req.Metadata {
		meta[k] = v
	}
	return SessionConfirmation{
		SessionID:     sessionID,
		PaymentStatus: s.status,
		AmountTotal:   total,
		Currency:      defaultString(s.req.Currency, "usd"),
		CustomerEmail: s.req.CustomerEmail,
		Metadata:      meta,
	}, nil
}

// SetStatus overrides the payment status reported for a session.
func (f *FakeProvider) SetStatus(sessionID string, status PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.status = status
		f.sessions[sessionID] = s
	}
}

// Request returns the request a session was created from.
func (f *FakeProvider) Request(sessionID string) (CheckoutSessionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	return s.req, ok
}

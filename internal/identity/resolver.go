// Package identity decides who a request belongs to: an authenticated customer or a
// guest session, and manages the guest cookie.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const (
	GuestCookie = "guest_session"
	AuthCookie  = "access_token"
)

type customerLookup interface {
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
}

type guestSessions interface {
	Issue(ctx context.Context) (*domain.GuestSession, error)
	Lookup(ctx context.Context, token string) (*domain.GuestSession, error)
}

// Identity is the resolved principal of one request. At most one of Customer and
// Guest drives the owner key; a customer always wins.
type Identity struct {
	Customer    *domain.Customer
	AccessToken string
	Guest       *domain.GuestSession
}

// Owner returns the cart owner key of the identity.
func (i Identity) Owner() (domain.OwnerKey, bool) {
	switch {
	case i.Customer != nil:
		return domain.UserOwner(i.Customer.ID), true
	case i.Guest != nil:
		return domain.GuestOwner(i.Guest.Token), true
	}
	return domain.OwnerKey{}, false
}

func (i Identity) Authenticated() bool {
	return i.Customer != nil
}

// Resolver reads identities from requests and issues guest sessions on demand.
type Resolver struct {
	customers customerLookup
	guests    guestSessions
	secure    bool
	now       func() time.Time
	logger    *zap.Logger
}

// NewResolver builds a Resolver. secure marks cookies Secure, which production requires.
func NewResolver(customers customerLookup, guests guestSessions, secure bool, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{customers: customers, guests: guests, secure: secure, now: time.Now, logger: logger.Named("identity")}
}

// Resolve returns the identity carried by r. Unknown or expired credentials resolve to
// an empty identity rather than an error; only storage failures are returned.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (Identity, error) {
	var id Identity

	if token := accessToken(r); token != "" {
		c, err := res.customers.LookupByToken(ctx, token)
		switch {
		case err == nil:
			id.Customer = c
			id.AccessToken = token
		case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotFound):
		default:
			return Identity{}, err
		}
	}

	if cookie, err := r.Cookie(GuestCookie); err == nil && cookie.Value != "" {
		g, err := res.guests.Lookup(ctx, cookie.Value)
		switch {
		case err == nil:
			id.Guest = g
		case errors.Is(err, domain.ErrNotFound):
		default:
			return Identity{}, err
		}
	}
	return id, nil
}

// EnsureOwner returns the owner key of id, issuing a fresh guest session and setting its
// cookie when the request carries neither a customer nor a live guest session.
func (res *Resolver) EnsureOwner(ctx context.Context, w http.ResponseWriter, id *Identity) (domain.OwnerKey, error) {
	if owner, ok := id.Owner(); ok {
		return owner, nil
	}
	g, err := res.guests.Issue(ctx)
	if err != nil {
		return domain.OwnerKey{}, err
	}
	id.Guest = g
	res.SetGuestCookie(w, g)
	res.logger.Debug("guest session issued", zap.Time("expires_at", g.ExpiresAt))
	return domain.GuestOwner(g.Token), nil
}

// SetGuestCookie writes the HTTP-only guest cookie for g.
func (res *Resolver) SetGuestCookie(w http.ResponseWriter, g *domain.GuestSession) {
	maxAge := int(g.ExpiresAt.Sub(res.now()).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    g.Token,
		Path:     "/",
		Expires:  g.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   res.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearGuestCookie expires the guest cookie in the browser.
func (res *Resolver) ClearGuestCookie(w http.ResponseWriter) {
	res.clear(w, GuestCookie)
}

// SetAuthCookie stores the access token for browser clients.
func (res *Resolver) SetAuthCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   int(expiresAt.Sub(res.now()).Seconds()),
		HttpOnly: true,
		Secure:   res.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (res *Resolver) ClearAuthCookie(w http.ResponseWriter) {
	res.clear(w, AuthCookie)
}

func (res *Resolver) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   res.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// accessToken prefers the Authorization bearer header over the auth cookie.
func accessToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(AuthCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

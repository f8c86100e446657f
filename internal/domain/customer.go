package domain

import "time"

// Customer represents a registered shopper.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GuestSession is the time-boxed anonymous identity behind a guest cart.
type GuestSession struct {
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its absolute expiry at now.
func (g GuestSession) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

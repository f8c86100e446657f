package domain

import "strings"

// OwnerKind discriminates the two kinds of cart owner.
type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// OwnerKey addresses exactly one cart: either a registered customer or a guest session token.
type OwnerKey struct {
	Kind OwnerKind
	ID   string
}

// UserOwner builds the owner key of an authenticated customer.
func UserOwner(userID string) OwnerKey {
	return OwnerKey{Kind: OwnerUser, ID: strings.TrimSpace(userID)}
}

// GuestOwner builds the owner key of a guest session.
func GuestOwner(token string) OwnerKey {
	return OwnerKey{Kind: OwnerGuest, ID: strings.TrimSpace(token)}
}

// Valid reports whether the key names a known owner kind with a non-empty id.
func (k OwnerKey) Valid() bool {
	return (k.Kind == OwnerUser || k.Kind == OwnerGuest) && k.ID != ""
}

// IsGuest reports whether the key belongs to a guest session.
func (k OwnerKey) IsGuest() bool {
	return k.Kind == OwnerGuest
}

// String renders the key as "<kind>:<id>", used for cache keys and logs.
func (k OwnerKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Columns splits the key into the nullable (customer_id, guest_token) pair stored on carts.
func (k OwnerKey) Columns() (customerID, guestToken *string) {
	id := k.ID
	if k.Kind == OwnerUser {
		return &id, nil
	}
	return nil, &id
}

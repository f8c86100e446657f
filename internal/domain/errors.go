package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyCart indicates an operation needed at least one line item.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartNotEmpty indicates a cart still held lines when it was about to be removed.
	ErrCartNotEmpty = errors.New("cart is not empty")
	// ErrUnauthorized indicates the caller has neither a principal nor a valid guest session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream marks payment provider failures: unreachable, unknown session or malformed payload.
	ErrUpstream = errors.New("upstream error")
	// ErrInvariant marks data that should never exist if the flow was followed, such as missing checkout metadata.
	ErrInvariant = errors.New("invariant violated")
	// ErrOrderCreation marks a failed materialization transaction. Retrying is safe.
	ErrOrderCreation = errors.New("order creation failed")
)

// ValidationError carries user-correctable problems keyed by field name.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records a message for field.
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// Empty reports whether no field has been flagged.
func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	if v.Empty() {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a ValidationError when possible.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

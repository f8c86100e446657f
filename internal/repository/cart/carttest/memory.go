// Package carttest provides an in-memory cart repository for service tests.
package carttest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

// Memory is an in-process cart repository for service tests. Variants must be
// registered with PutVariant before lines can reference them. Every mutation
// advances the cart's UpdatedAt.
type Memory struct {
	mu       sync.Mutex
	seq      int
	carts    map[string]*domain.Cart
	byOwner  map[domain.OwnerKey]string
	variants map[string]domain.CartItemView
}

func NewMemory() *Memory {
	return &Memory{
		carts:    map[string]*domain.Cart{},
		byOwner:  map[domain.OwnerKey]string{},
		variants: map[string]domain.CartItemView{},
	}
}

// PutVariant registers display data for a variant, keyed by item.VariantID.
func (m *Memory) PutVariant(item domain.CartItemView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[item.VariantID] = item
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Memory) GetOrCreate(_ context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewValidationError("owner", "is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byOwner[owner]; ok {
		return cloneCart(m.carts[id]), nil
	}
	customerID, guestToken := owner.Columns()
	now := time.Now().UTC()
	c := &domain.Cart{ID: m.nextID("cart"), CustomerID: customerID, GuestToken: guestToken, CreatedAt: now, UpdatedAt: now}
	m.carts[c.ID] = c
	m.byOwner[owner] = c.ID
	return cloneCart(c), nil
}

func (m *Memory) GetByOwner(_ context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOwner[owner]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCart(m.carts[id]), nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCart(c), nil
}

func (m *Memory) ListItems(_ context.Context, cartID string) ([]domain.CartItemView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []domain.CartItemView{}
	c, ok := m.carts[cartID]
	if !ok {
		return items, nil
	}
	for _, line := range c.Lines {
		item := m.variants[line.VariantID]
		item.ID = line.ID
		item.VariantID = line.VariantID
		item.Quantity = line.Quantity
		items = append(items, item)
	}
	return items, nil
}

func (m *Memory) AddLine(_ context.Context, cartID, variantID string, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be a positive integer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := m.variants[variantID]; !ok {
		return nil, domain.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].VariantID == variantID {
			c.Lines[i].Quantity += quantity
			touch(c)
			line := c.Lines[i]
			return &line, nil
		}
	}
	line := domain.CartLine{ID: m.nextID("line"), CartID: cartID, VariantID: variantID, Quantity: quantity, CreatedAt: time.Now().UTC()}
	c.Lines = append(c.Lines, line)
	touch(c)
	return &line, nil
}

func (m *Memory) SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) error {
	if quantity <= 0 {
		return m.RemoveLine(ctx, cartID, lineID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines[i].Quantity = quantity
			touch(c)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Memory) RemoveLine(_ context.Context, cartID, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			touch(c)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Memory) ClearLines(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[cartID]; ok {
		c.Lines = nil
		touch(c)
	}
	return nil
}

func (m *Memory) DeleteIfEmpty(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	if len(c.Lines) > 0 {
		return domain.ErrCartNotEmpty
	}
	delete(m.byOwner, c.Owner())
	delete(m.carts, cartID)
	return nil
}

func (m *Memory) MoveLine(_ context.Context, fromCartID, lineID, toCartID string) (cartrepo.MoveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, ok := m.carts[fromCartID]
	if !ok {
		return cartrepo.MoveGone, nil
	}
	to, ok := m.carts[toCartID]
	if !ok {
		return cartrepo.MoveGone, domain.ErrNotFound
	}
	idx := -1
	for i := range from.Lines {
		if from.Lines[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cartrepo.MoveGone, nil
	}
	line := from.Lines[idx]
	from.Lines = append(from.Lines[:idx], from.Lines[idx+1:]...)
	touch(from)
	touch(to)

	for i := range to.Lines {
		if to.Lines[i].VariantID == line.VariantID {
			to.Lines[i].Quantity += line.Quantity
			return cartrepo.MoveSummed, nil
		}
	}
	line.CartID = toCartID
	to.Lines = append(to.Lines, line)
	return cartrepo.MoveRepointed, nil
}

// Count returns the number of carts held.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

func touch(c *domain.Cart) {
	now := time.Now().UTC()
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Nanosecond)
	}
	c.UpdatedAt = now
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = append([]domain.CartLine(nil), c.Lines...)
	sort.SliceStable(out.Lines, func(i, j int) bool { return out.Lines[i].CreatedAt.Before(out.Lines[j].CreatedAt) })
	return &out
}

var _ cartrepo.Repository = (*Memory)(nil)

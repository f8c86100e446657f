// Package cartview is the client-side mirror of a shopper's cart. Mutations are applied
// optimistically, confirmed against the cart API and rolled back on failure. The server
// stays authoritative; totals here are for display only.
package cartview

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// PendingPrefix marks line ids created optimistically before the server assigned one.
const PendingPrefix = "pending:"

// State is an immutable snapshot of the mirrored cart.
type State struct {
	CartID   string
	Items    []domain.CartItemView
	Subtotal decimal.Decimal
	Loading  bool
}

// Quantity returns the mirrored quantity of a variant, zero when absent.
func (s State) Quantity(variantID string) int {
	for _, item := range s.Items {
		if item.VariantID == variantID {
			return item.Quantity
		}
	}
	return 0
}

// Count is the total number of units in the cart.
func (s State) Count() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

// Loaded replaces the state with an authoritative server view.
type Loaded struct{ View domain.CartView }

// OptimisticAdd adds Quantity units of Item.VariantID, merging with an existing line.
type OptimisticAdd struct {
	Item     domain.CartItemView
	Quantity int
}

// OptimisticUpdate sets a line's quantity; zero or less removes it.
type OptimisticUpdate struct {
	ItemID   string
	Quantity int
}

type OptimisticRemove struct{ ItemID string }

type OptimisticClear struct{}

// Rollback restores a snapshot taken before an optimistic action.
type Rollback struct{ Snapshot State }

type SetLoading struct{ Loading bool }

func (Loaded) isAction()           {}
func (OptimisticAdd) isAction()    {}
func (OptimisticUpdate) isAction() {}
func (OptimisticRemove) isAction() {}
func (OptimisticClear) isAction()  {}
func (Rollback) isAction()         {}
func (SetLoading) isAction()       {}

// Reduce returns the state that results from applying a to s. s is never modified.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case Loaded:
		items := cloneItems(act.View.Items)
		return State{CartID: act.View.CartID, Items: items, Subtotal: domain.Subtotal(items), Loading: s.Loading}
	case OptimisticAdd:
		if act.Quantity <= 0 {
			return s
		}
		items := cloneItems(s.Items)
		merged := false
		for i := range items {
			if items[i].VariantID == act.Item.VariantID {
				items[i].Quantity += act.Quantity
				merged = true
				break
			}
		}
		if !merged {
			item := act.Item
			item.ID = PendingPrefix + item.VariantID
			item.Quantity = act.Quantity
			items = append(items, item)
		}
		return s.withItems(items)
	case OptimisticUpdate:
		if act.Quantity <= 0 {
			return Reduce(s, OptimisticRemove{ItemID: act.ItemID})
		}
		items := cloneItems(s.Items)
		for i := range items {
			if items[i].ID == act.ItemID {
				items[i].Quantity = act.Quantity
			}
		}
		return s.withItems(items)
	case OptimisticRemove:
		items := make([]domain.CartItemView, 0, len(s.Items))
		for _, item := range s.Items {
			if item.ID != act.ItemID {
				items = append(items, item)
			}
		}
		return s.withItems(items)
	case OptimisticClear:
		return s.withItems([]domain.CartItemView{})
	case Rollback:
		snap := act.Snapshot
		snap.Items = cloneItems(snap.Items)
		snap.Loading = s.Loading
		return snap
	case SetLoading:
		s.Loading = act.Loading
		return s
	}
	return s
}

func (s State) withItems(items []domain.CartItemView) State {
	s.Items = items
	s.Subtotal = domain.Subtotal(items)
	return s
}

func cloneItems(items []domain.CartItemView) []domain.CartItemView {
	out := make([]domain.CartItemView, len(items))
	copy(out, items)
	return out
}

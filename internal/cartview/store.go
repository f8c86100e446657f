package cartview

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

// Backend is the authoritative cart API the store mirrors.
type Backend interface {
	Get(ctx context.Context) (domain.CartView, error)
	Add(ctx context.Context, variantID string, quantity int) (domain.CartView, error)
	Update(ctx context.Context, itemID string, quantity int) (domain.CartView, error)
	Remove(ctx context.Context, itemID string) (domain.CartView, error)
	Clear(ctx context.Context) (domain.CartView, error)
}

// Store holds the state for one UI tree. Create one per shopper session; there is no
// package-level instance.
type Store struct {
	mu      sync.Mutex
	state   State
	backend Backend
	subs    map[int]func(State)
	nextSub int
	logger  *zap.Logger
}

func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:   State{Items: []domain.CartItemView{}},
		backend: backend,
		subs:    map[int]func(State){},
		logger:  logger.Named("cartview"),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every new state. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Dispatch applies a to the state and notifies subscribers. It returns the state
// before the action.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	prev := s.state
	s.state = Reduce(prev, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return prev
}

// Refresh replaces the state with the server's view.
func (s *Store) Refresh(ctx context.Context) error {
	s.Dispatch(SetLoading{Loading: true})
	defer s.Dispatch(SetLoading{Loading: false})

	view, err := s.backend.Get(ctx)
	if err != nil {
		s.logger.Warn("refresh cart", zap.Error(err))
		return err
	}
	s.Dispatch(Loaded{View: view})
	return nil
}

// AddItem optimistically adds quantity units of item, then confirms with the server.
// item carries the display data used until the authoritative view arrives.
func (s *Store) AddItem(ctx context.Context, item domain.CartItemView, quantity int) error {
	return s.mutate(ctx, OptimisticAdd{Item: item, Quantity: quantity}, func(ctx context.Context) error {
		_, err := s.backend.Add(ctx, item.VariantID, quantity)
		return err
	})
}

func (s *Store) UpdateItem(ctx context.Context, itemID string, quantity int) error {
	return s.mutate(ctx, OptimisticUpdate{ItemID: itemID, Quantity: quantity}, func(ctx context.Context) error {
		_, err := s.backend.Update(ctx, itemID, quantity)
		return err
	})
}

func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.mutate(ctx, OptimisticRemove{ItemID: itemID}, func(ctx context.Context) error {
		_, err := s.backend.Remove(ctx, itemID)
		return err
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, OptimisticClear{}, func(ctx context.Context) error {
		_, err := s.backend.Clear(ctx)
		return err
	})
}

// mutate applies optimistic, runs call and either re-fetches or restores the snapshot.
func (s *Store) mutate(ctx context.Context, optimistic Action, call func(context.Context) error) error {
	snapshot := s.Dispatch(optimistic)
	if err := call(ctx); err != nil {
		s.logger.Warn("cart mutation failed, rolling back", zap.Error(err))
		s.Dispatch(Rollback{Snapshot: snapshot})
		return err
	}
	return s.Refresh(ctx)
}

package merge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type guestRetirer interface {
	Retire(ctx context.Context, token string) error
}

type cartInvalidator interface {
	Invalidate(ctx context.Context, owner domain.OwnerKey)
}

// Result summarizes one merge run.
type Result struct {
	UserCartID string `json:"userCartId,omitempty"`
	Repointed  int    `json:"repointed"`
	Summed     int    `json:"summed"`
	Retired    bool   `json:"retired"`
}

// Engine folds a guest cart into the authenticated user's cart.
type Engine struct {
	carts  cartrepo.Repository
	guests guestRetirer
	views  cartInvalidator
	logger *zap.Logger
}

func New(carts cartrepo.Repository, guests guestRetirer, views cartInvalidator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{carts: carts, guests: guests, views: views, logger: logger.Named("merge")}
}

// maxPasses bounds how often Merge re-reads a guest cart that keeps receiving lines.
const maxPasses = 3

// Merge moves every line of the guest's cart into the user's cart, then deletes the
// emptied guest cart and retires the guest session. Lines for a variant the user already
// holds are summed; others are re-pointed. The guest cart and session are only removed
// once no lines remain, so a line added while the merge runs is picked up by the next
// pass instead of being dropped. Each line moves in its own transaction, so a failed run
// leaves the guest session in place and a later run picks up the remaining lines.
func (e *Engine) Merge(ctx context.Context, guestToken, userID string) (Result, error) {
	var res Result
	if guestToken == "" {
		return res, nil
	}
	if userID == "" {
		return res, fmt.Errorf("%w: merge requires a user id", domain.ErrInvariant)
	}
	guestOwner := domain.GuestOwner(guestToken)
	userOwner := domain.UserOwner(userID)
	log := e.logger.With(zap.String("user_id", userID))

	defer e.views.Invalidate(ctx, userOwner)
	defer e.views.Invalidate(ctx, guestOwner)

	var err error
	for pass := 0; pass < maxPasses; pass++ {
		if err = e.mergePass(ctx, guestOwner, userOwner, &res); err != nil {
			if errors.Is(err, domain.ErrCartNotEmpty) {
				log.Info("guest cart changed during merge, retrying", zap.Int("pass", pass+1))
				continue
			}
			return res, err
		}
		if err = e.guests.Retire(ctx, guestToken); err != nil {
			if errors.Is(err, domain.ErrCartNotEmpty) {
				log.Info("guest cart changed during merge, retrying", zap.Int("pass", pass+1))
				continue
			}
			return res, err
		}
		res.Retired = true
		break
	}
	if !res.Retired {
		return res, fmt.Errorf("merge guest cart: %w", err)
	}

	if res.Repointed+res.Summed > 0 {
		log.Info("guest cart merged",
			zap.String("cart_id", res.UserCartID),
			zap.Int("repointed", res.Repointed),
			zap.Int("summed", res.Summed),
		)
	}
	return res, nil
}

// mergePass moves the guest cart's current lines and deletes it once empty. It returns
// domain.ErrCartNotEmpty when lines arrived after they were read.
func (e *Engine) mergePass(ctx context.Context, guestOwner, userOwner domain.OwnerKey, res *Result) error {
	guestCart, err := e.carts.GetByOwner(ctx, guestOwner)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(guestCart.Lines) > 0 {
		if res.UserCartID == "" {
			userCart, err := e.carts.GetOrCreate(ctx, userOwner)
			if err != nil {
				return err
			}
			res.UserCartID = userCart.ID
		}
		for _, line := range guestCart.Lines {
			outcome, err := e.carts.MoveLine(ctx, guestCart.ID, line.ID, res.UserCartID)
			if err != nil {
				e.logger.Error("merge line failed",
					zap.String("line_id", line.ID),
					zap.String("variant_id", line.VariantID),
					zap.Error(err),
				)
				return fmt.Errorf("merge line %s: %w", line.ID, err)
			}
			switch outcome {
			case cartrepo.MoveRepointed:
				res.Repointed++
			case cartrepo.MoveSummed:
				res.Summed++
			}
		}
	}

	if err := e.carts.DeleteIfEmpty(ctx, guestCart.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

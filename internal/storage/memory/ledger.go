package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// ledger меняет остатки под блокировкой хранилища: проверка и списание неделимы.
type ledger struct {
	store *Store
	sess  *session
}

func (l ledger) Reserve(ctx context.Context, productID string, qty int32) error {
	return l.apply(ctx, productID, qty, true)
}

func (l ledger) Release(ctx context.Context, productID string, qty int32) error {
	return l.apply(ctx, productID, qty, false)
}

func (l ledger) apply(ctx context.Context, productID string, qty int32, reserve bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	unlock, err := l.store.lock(l.sess, true)
	if err != nil {
		return err
	}
	defer unlock()

	prev, ok := l.store.products[productID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	next := prev
	if reserve {
		if prev.Stock < qty {
			return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: prev.Stock}
		}
		next.Stock -= qty
	} else {
		next.Stock += qty
	}
	next.UpdatedAt = l.store.now()
	l.store.products[productID] = next

	l.sess.onRollback(func() { l.store.products[productID] = prev })
	return nil
}

var _ domain.InventoryLedger = ledger{}

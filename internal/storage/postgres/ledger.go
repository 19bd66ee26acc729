package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// ledger списывает остаток одним условным UPDATE: проверка и списание выполняются
// под блокировкой строки, поэтому параллельные резервы не могут увести stock ниже нуля.
type ledger struct {
	q queryer
}

// NewLedger возвращает журнал остатков, где каждая операция — отдельная транзакция.
func NewLedger(store *Store) domain.InventoryLedger {
	return &ledger{q: store.DB()}
}

func (l *ledger) Reserve(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := l.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, qty)
	if err != nil {
		return domain.PersistenceError("reserve stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.PersistenceError("reserve rows affected", err)
	}
	if affected == 1 {
		return nil
	}

	var available int32
	err = l.q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.PersistenceError("read stock", err)
	}
	return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

func (l *ledger) Release(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := l.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return domain.PersistenceError("release stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.PersistenceError("release rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return nil
}

var _ domain.InventoryLedger = (*ledger)(nil)

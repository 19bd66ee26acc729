package order

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/service/inventory"
)

// DeleteOrder удаляет заказ и возвращает зарезервированные остатки.
// Удаление заказа и возврат остатков фиксируются одной сессией. Параллельные
// удаления одного заказа упорядочиваются на удалении записи, поэтому остаток
// возвращается ровно один раз, а остальные вызовы получают ErrOrderNotFound.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) (deleted domain.Order, err error) {
	orderID = strings.TrimSpace(orderID)

	done := s.metrics.Track("delete")
	ctx, span := startSpan(ctx, "order.Delete", attribute.String("order.id", orderID))
	defer func() {
		if err == nil {
			s.metrics.RecordDeleted()
		}
		endSpan(span, err)
		done()
	}()

	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	sess, err := s.sessions.Begin(ctx)
	if err != nil {
		return domain.Order{}, storeError("begin session", err)
	}
	entry := s.logger.WithField("order_id", orderID)
	defer s.rollback(sess, entry)

	deleted, err = sess.Orders().Delete(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError("delete order", err)
	}

	for _, r := range inventory.Plan(deleted.Lines()) {
		err := sess.Ledger().Release(ctx, r.ProductID, r.Quantity)
		if errors.Is(err, domain.ErrProductNotFound) {
			entry.WithField("product_id", r.ProductID).Warn("product no longer in catalog, stock not restored")
			continue
		}
		if err != nil {
			return domain.Order{}, storeError("release stock", err)
		}
	}

	if err := s.record(ctx, sess, domain.EventOrderDeleted, domain.TimelineOrderDeleted, deleted, "stock restored"); err != nil {
		return domain.Order{}, err
	}
	if err := sess.Commit(ctx); err != nil {
		return domain.Order{}, domain.PersistenceError("commit order delete", err)
	}

	s.invalidateStatus(ctx, orderID)
	entry.WithField("items", len(deleted.Items)).Info("order deleted")
	return deleted, nil
}

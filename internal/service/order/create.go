package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/service/inventory"
	"github.com/vladislavdragonenkov/backoffice/internal/service/pricing"
)

// CreateOrder оформляет заказ: резервирует остатки по всем позициям, фиксирует
// цены и сохраняет заказ одной сессией. Либо всё из этого произошло, либо ничего:
// при любой ошибке уже сделанные резервы возвращаются, даже если ctx отменён.
func (s *Service) CreateOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (created domain.Order, err error) {
	customerID = strings.TrimSpace(customerID)

	done := s.metrics.Track("create")
	ctx, span := startSpan(ctx, "order.Create",
		attribute.String("customer.id", customerID),
		attribute.Int("order.lines", len(lines)),
	)
	defer func() {
		if err != nil {
			s.metrics.RecordCreateFailure(failureReason(err))
		} else {
			s.metrics.RecordCreated()
		}
		endSpan(span, err)
		done()
	}()

	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if err := inventory.ValidateLines(lines); err != nil {
		return domain.Order{}, err
	}

	exists, err := s.customers.Exists(ctx, customerID)
	if err != nil {
		return domain.Order{}, storeError("check customer", err)
	}
	if !exists {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, customerID)
	}

	sess, err := s.sessions.Begin(ctx)
	if err != nil {
		return domain.Order{}, storeError("begin session", err)
	}
	entry := s.logger.WithField("customer_id", customerID)
	defer s.rollback(sess, entry)

	plan := inventory.Plan(lines)

	products := make(map[string]domain.Product, len(plan))
	for _, r := range plan {
		product, err := sess.Products().GetByID(ctx, r.ProductID)
		if err != nil {
			return domain.Order{}, storeError("resolve product", err)
		}
		products[r.ProductID] = product
	}

	reserved := make([]domain.Reservation, 0, len(plan))
	for _, r := range plan {
		if err := sess.Ledger().Reserve(ctx, r.ProductID, r.Quantity); err != nil {
			s.metrics.RecordReservation(false)
			s.compensate(ctx, sess, reserved, entry)
			entry.WithError(err).WithField("product_id", r.ProductID).Info("stock reservation rejected")
			return domain.Order{}, storeError("reserve stock", err)
		}
		s.metrics.RecordReservation(true)
		reserved = append(reserved, r)
	}

	created, err = sess.Orders().Create(ctx, assemble(customerID, lines, products, s.now))
	if err != nil {
		s.compensate(ctx, sess, reserved, entry)
		return domain.Order{}, storeError("persist order", err)
	}
	entry = entry.WithField("order_id", created.ID)

	if err := s.record(ctx, sess, domain.EventOrderCreated, domain.TimelineOrderCreated, created, describe(created)); err != nil {
		s.compensate(ctx, sess, reserved, entry)
		return domain.Order{}, err
	}

	// Неудачный Commit отменяет все изменения сессии, компенсировать нечего.
	if err := sess.Commit(ctx); err != nil {
		return domain.Order{}, domain.PersistenceError("commit order", err)
	}

	s.cacheStatus(ctx, created)
	entry.WithFields(log.Fields{
		"items": len(created.Items),
		"total": created.TotalAmount.StringFixed(domain.PriceScale),
	}).Info("order created")
	return created, nil
}

// assemble строит заказ: позиции в порядке запроса, цены — снимок на момент оформления.
func assemble(customerID string, lines []domain.OrderLine, products map[string]domain.Product, now func() time.Time) domain.Order {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product := products[line.ProductID]
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			Price:       pricing.Snapshot(product.Price, line.Quantity),
		})
	}
	return domain.Order{
		CustomerID:    customerID,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   pricing.Total(items),
		Items:         items,
		CreatedAt:     now(),
	}
}

// compensate возвращает уже сделанные резервы. Контекст запроса может быть
// отменён, поэтому возврат идёт без отмены. Если Release не прошёл, остаток
// восстановит откат сессии.
func (s *Service) compensate(ctx context.Context, sess domain.Session, reserved []domain.Reservation, entry *log.Entry) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range reserved {
		err := sess.Ledger().Release(ctx, r.ProductID, r.Quantity)
		s.metrics.RecordCompensation(err)
		if err != nil {
			entry.WithError(err).WithFields(log.Fields{
				"product_id": r.ProductID,
				"quantity":   r.Quantity,
			}).Warn("compensating release failed, relying on session rollback")
		}
	}
}

// record пишет событие в outbox и таймлайн в той же сессии, что и заказ.
func (s *Service) record(ctx context.Context, sess domain.Session, eventType, timelineType string, order domain.Order, reason string) error {
	msg, err := domain.NewOrderEvent(eventType, order, s.now())
	if err != nil {
		return domain.PersistenceError("encode order event", err)
	}
	if _, err := sess.Outbox().Enqueue(ctx, msg); err != nil {
		return storeError("enqueue order event", err)
	}
	if err := sess.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineType,
		Reason:   reason,
		Occurred: s.now(),
	}); err != nil {
		return storeError("append timeline", err)
	}
	return nil
}

// storeError пропускает доменные ошибки и отмену контекста, остальное — сбой хранилища.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		domain.IsValidation(err),
		isContextError(err):
		return err
	default:
		return domain.PersistenceError(op, err)
	}
}

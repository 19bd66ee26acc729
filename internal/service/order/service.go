// Package order собирает заказы из резервов остатков и снимков цен
// и удаляет их с возвратом остатков.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

var tracer = otel.Tracer("github.com/vladislavdragonenkov/backoffice/internal/service/order")

// Service — сборщик заказов. Остатки меняются только через Ledger сессии,
// каждая операция выполняется в отдельной сессии.
type Service struct {
	sessions  domain.SessionFactory
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	cache     domain.OrderStatusCache
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithStatusCache включает кэш статуса оплаты для GetOrderStatus.
func WithStatusCache(cache domain.OrderStatusCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт сборщик. orders и timeline используются только для чтения.
func NewService(
	sessions domain.SessionFactory,
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:  sessions,
		customers: customers,
		orders:    orders,
		timeline:  timeline,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-service")
	}
	return s
}

// GetOrder возвращает заказ с позициями.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError("get order", err)
	}
	return order, nil
}

// ListOrders возвращает все заказы по времени создания.
func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, storeError("list orders", err)
	}
	return orders, nil
}

// ListOrdersForCustomer возвращает заказы клиента. Неизвестный клиент даёт пустой список.
func (s *Service) ListOrdersForCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, storeError("list customer orders", err)
	}
	return orders, nil
}

// GetOrderStatus возвращает статус оплаты: сначала из кэша, затем из хранилища.
// Ошибки кэша не влияют на результат.
func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (domain.PaymentStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", domain.ErrOrderIDRequired
	}

	if s.cache != nil {
		status, hit, err := s.cache.Get(ctx, orderID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("status cache read failed")
		} else if hit {
			return status, nil
		}
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", storeError("get order status", err)
	}
	if s.cache == nil {
		return order.PaymentStatus, nil
	}

	// Заказ мог быть удалён между чтением и записью в кэш: его инвалидация
	// тогда прошла раньше нашего Set. Повторное чтение закрывает это окно.
	s.cacheStatus(ctx, order)
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		s.invalidateStatus(context.WithoutCancel(ctx), orderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return "", err
		}
	}
	return order.PaymentStatus, nil
}

// OrderTimeline возвращает события заказа. Таймлайн удалённого заказа сохраняется.
func (s *Service) OrderTimeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrOrderIDRequired
	}
	events, err := s.timeline.List(ctx, orderID)
	if err != nil {
		return nil, storeError("list timeline", err)
	}
	return events, nil
}

func (s *Service) cacheStatus(ctx context.Context, order domain.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, order.ID, order.PaymentStatus); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("status cache write failed")
	}
}

func (s *Service) invalidateStatus(ctx context.Context, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, orderID); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("status cache invalidate failed")
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// failureReason относит ошибку создания к метке метрики.
func failureReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return metrics.ReasonValidation
	case errors.Is(err, domain.ErrCustomerNotFound):
		return metrics.ReasonCustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.ReasonProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.ReasonInsufficientStock
	case isContextError(err):
		return metrics.ReasonCanceled
	default:
		return metrics.ReasonPersistence
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// rollback закрывает сессию; вызывается отложенно на каждом пути выхода.
func (s *Service) rollback(sess domain.Session, entry *log.Entry) {
	if err := sess.Rollback(context.Background()); err != nil {
		entry.WithError(err).Warn("session rollback failed")
	}
}

func describe(order domain.Order) string {
	return fmt.Sprintf("%d items, total %s", len(order.Items), order.TotalAmount.StringFixed(domain.PriceScale))
}

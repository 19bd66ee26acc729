package order_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
	"github.com/vladislavdragonenkov/backoffice/internal/service/inventory"
	"github.com/vladislavdragonenkov/backoffice/internal/service/order"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

const customerID = "C1"

type fixture struct {
	store    *memory.Store
	registry *prometheus.Registry
	service  *order.Service
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

// newFixture создаёт хранилище с клиентом C1 и сервис поверх sessions.
// Если sessions == nil, используется само хранилище.
func newFixture(t *testing.T, sessions func(*memory.Store) domain.SessionFactory, opts ...order.Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	_, err := store.Customers().Create(context.Background(), domain.Customer{ID: customerID, FirstName: "Ada"})
	require.NoError(t, err)

	var factory domain.SessionFactory = store
	if sessions != nil {
		factory = sessions(store)
	}

	registry := prometheus.NewRegistry()
	opts = append([]order.Option{
		order.WithLogger(quietLogger()),
		order.WithMetrics(metrics.NewOrderMetricsWithRegisterer(registry)),
	}, opts...)

	return &fixture{
		store:    store,
		registry: registry,
		service:  order.NewService(factory, store.Customers(), store.Orders(), store.Timeline(), opts...),
	}
}

func (f *fixture) addProduct(t *testing.T, id, price string, stock int32) {
	t.Helper()
	_, err := f.store.Products().Create(context.Background(), domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id string) int32 {
	t.Helper()
	product, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.store.Orders().List(context.Background())
	require.NoError(t, err)
	return len(orders)
}

func (f *fixture) pendingOutbox(t *testing.T) int {
	t.Helper()
	stats, err := f.store.Outbox().Stats(context.Background())
	require.NoError(t, err)
	return stats.PendingCount
}

func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func lines(pairs ...any) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.OrderLine{ProductID: pairs[i].(string), Quantity: int32(pairs[i+1].(int))})
	}
	return out
}

// faultySessions оборачивает сессии хранилища и внедряет сбои.
type faultySessions struct {
	next domain.SessionFactory

	wrapLedger func(domain.InventoryLedger) domain.InventoryLedger
	createErr  error
	enqueueErr error
	commitErr  error

	mu     sync.Mutex
	ledger *inventory.MockLedger
}

func (f *faultySessions) Begin(ctx context.Context) (domain.Session, error) {
	sess, err := f.next.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var ledger domain.InventoryLedger = sess.Ledger()
	if f.wrapLedger != nil {
		ledger = f.wrapLedger(ledger)
	}
	mock := inventory.NewMockLedger(ledger)

	f.mu.Lock()
	f.ledger = mock
	f.mu.Unlock()

	return &faultySession{Session: sess, f: f, ledger: mock}, nil
}

func (f *faultySessions) released() []domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledger == nil {
		return nil
	}
	return f.ledger.Released()
}

type faultySession struct {
	domain.Session
	f      *faultySessions
	ledger *inventory.MockLedger
}

func (s *faultySession) Ledger() domain.InventoryLedger { return s.ledger }

func (s *faultySession) Orders() domain.OrderRepository {
	if s.f.createErr == nil {
		return s.Session.Orders()
	}
	return failingOrders{OrderRepository: s.Session.Orders(), err: s.f.createErr}
}

func (s *faultySession) Outbox() domain.OutboxWriter {
	if s.f.enqueueErr == nil {
		return s.Session.Outbox()
	}
	return failingOutbox{err: s.f.enqueueErr}
}

func (s *faultySession) Commit(ctx context.Context) error {
	if s.f.commitErr == nil {
		return s.Session.Commit(ctx)
	}
	_ = s.Session.Rollback(ctx)
	return s.f.commitErr
}

type failingOrders struct {
	domain.OrderRepository
	err error
}

func (o failingOrders) Create(context.Context, domain.Order) (domain.Order, error) {
	return domain.Order{}, o.err
}

type failingOutbox struct{ err error }

func (o failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, o.err
}

// cancelingLedger отменяет контекст запроса после первого успешного резерва.
type cancelingLedger struct {
	domain.InventoryLedger
	cancel context.CancelFunc
}

func (l cancelingLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	if err := l.InventoryLedger.Reserve(ctx, productID, qty); err != nil {
		return err
	}
	l.cancel()
	return nil
}

// statusCache — кэш статусов в памяти с подсчётом обращений.
type statusCache struct {
	mu       sync.Mutex
	items    map[string]domain.PaymentStatus
	hits     int
	getErr   error
	invalids int
	// beforeSet вызывается вне блокировки перед каждой записью.
	beforeSet func(orderID string)
}

func newStatusCache() *statusCache {
	return &statusCache{items: make(map[string]domain.PaymentStatus)}
}

func (c *statusCache) Get(_ context.Context, orderID string) (domain.PaymentStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	status, ok := c.items[orderID]
	if ok {
		c.hits++
	}
	return status, ok, nil
}

func (c *statusCache) Set(_ context.Context, orderID string, status domain.PaymentStatus) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.mu.Unlock()
	if hook != nil {
		hook(orderID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[orderID] = status
	return nil
}

func (c *statusCache) Invalidate(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, orderID)
	c.invalids++
	return nil
}

func (c *statusCache) cached(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[orderID]
	return ok
}

func orderWithCache(cache domain.OrderStatusCache) order.Option {
	return order.WithStatusCache(cache)
}

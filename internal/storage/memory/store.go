package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Store — in-memory хранилище каталога, клиентов и заказов (для разработки и тестов).
//
// Сессия держит блокировку записи от Begin до Commit/Rollback, поэтому сессии
// выполняются строго по очереди, а читатели не видят промежуточных состояний.
// Каждое изменение в сессии пишет обратную операцию в журнал отката.
type Store struct {
	// turn — очередь сессий: Begin ждёт её с учётом ctx, а mu после этого
	// держат только короткие операции вне сессий.
	turn      chan struct{}
	mu        sync.RWMutex
	products  map[string]domain.Product
	customers map[string]domain.Customer
	orders    map[string]domain.Order

	outbox   *outboxRepositoryInMemory
	timeline *orderTimelines
	now      func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		turn:      make(chan struct{}, 1),
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		orders:    make(map[string]domain.Order),
		outbox:    NewOutboxRepository(),
		timeline:  NewTimelineRepository(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Products возвращает каталог вне сессии.
func (s *Store) Products() domain.ProductRepository { return productRepository{store: s} }

// Customers возвращает справочник клиентов.
func (s *Store) Customers() domain.CustomerRepository { return customerRepository{store: s} }

// Orders возвращает репозиторий заказов вне сессии.
func (s *Store) Orders() domain.OrderRepository { return orderRepository{store: s} }

// Ledger возвращает журнал остатков, где каждая операция — отдельная транзакция.
func (s *Store) Ledger() domain.InventoryLedger { return ledger{store: s} }

// Outbox возвращает outbox-репозиторий.
func (s *Store) Outbox() domain.OutboxRepository { return s.outbox }

// Timeline возвращает репозиторий таймлайна.
func (s *Store) Timeline() domain.TimelineRepository { return s.timeline }

// Begin открывает сессию и захватывает хранилище до её завершения.
// Пока другая сессия открыта, Begin ждёт и возвращает ошибку ctx при отмене.
func (s *Store) Begin(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	return &session{store: s}, nil
}

// lock захватывает хранилище для операции вне сессии. Внутри сессии блокировка уже взята.
func (s *Store) lock(sess *session, write bool) (func(), error) {
	if sess != nil {
		if sess.closed {
			return nil, domain.ErrSessionClosed
		}
		return func() {}, nil
	}
	if write {
		s.mu.Lock()
		return s.mu.Unlock, nil
	}
	s.mu.RLock()
	return s.mu.RUnlock, nil
}

type session struct {
	store    *Store
	undo     []func()
	outbox   []domain.OutboxMessage
	timeline []domain.TimelineEvent
	closed   bool
}

// onRollback регистрирует обратную операцию. Вне сессии ничего не делает.
func (s *session) onRollback(fn func()) {
	if s == nil {
		return
	}
	s.undo = append(s.undo, fn)
}

func (s *session) Products() domain.ProductRepository {
	return productRepository{store: s.store, sess: s}
}

func (s *session) Ledger() domain.InventoryLedger {
	return ledger{store: s.store, sess: s}
}

func (s *session) Orders() domain.OrderRepository {
	return orderRepository{store: s.store, sess: s}
}

func (s *session) Outbox() domain.OutboxWriter { return sessionOutbox{sess: s} }

func (s *session) Timeline() domain.TimelineWriter { return sessionTimeline{sess: s} }

// Commit переносит накопленные outbox/timeline записи и освобождает хранилище.
func (s *session) Commit(context.Context) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	for _, msg := range s.outbox {
		if _, err := s.store.outbox.Enqueue(context.Background(), msg); err != nil {
			s.rollback()
			return domain.PersistenceError("commit outbox", err)
		}
	}
	for _, event := range s.timeline {
		if err := s.store.timeline.Append(context.Background(), event); err != nil {
			s.rollback()
			return domain.PersistenceError("commit timeline", err)
		}
	}
	s.finish()
	return nil
}

// Rollback откатывает изменения в обратном порядке. Повторный вызов ничего не делает.
func (s *session) Rollback(context.Context) error {
	if s.closed {
		return nil
	}
	s.rollback()
	return nil
}

func (s *session) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.finish()
}

func (s *session) finish() {
	s.undo = nil
	s.outbox = nil
	s.timeline = nil
	s.closed = true
	s.store.mu.Unlock()
	<-s.store.turn
}

type sessionOutbox struct{ sess *session }

func (o sessionOutbox) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if o.sess.closed {
		return domain.OutboxMessage{}, domain.ErrSessionClosed
	}
	msg = withOutboxID(msg)
	o.sess.outbox = append(o.sess.outbox, msg)
	return msg, nil
}

type sessionTimeline struct{ sess *session }

func (t sessionTimeline) Append(ctx context.Context, event domain.TimelineEvent) error {
	if t.sess.closed {
		return domain.ErrSessionClosed
	}
	t.sess.timeline = append(t.sess.timeline, event)
	return nil
}

var (
	_ domain.SessionFactory = (*Store)(nil)
	_ domain.Session        = (*session)(nil)
)

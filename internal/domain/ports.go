package domain

import (
	"context"
	"time"
)

// InventoryLedger — единственный путь изменения остатков в рамках операций над заказами.
type InventoryLedger interface {
	// Reserve атомарно проверяет stock >= qty и списывает qty.
	// Возвращает *InsufficientStockError или ErrProductNotFound.
	Reserve(ctx context.Context, productID string, qty int32) error
	// Release атомарно возвращает qty на остаток. Дедупликации нет.
	Release(ctx context.Context, productID string, qty int32) error
}

// ProductRepository — каталог товаров.
type ProductRepository interface {
	Create(ctx context.Context, product Product) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, query ProductQuery) ([]Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id string) (Product, error)
}

// CustomerRepository — справочник клиентов.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]Customer, error)
}

// OrderRepository хранит агрегаты заказов. Все выборки загружают позиции сразу.
type OrderRepository interface {
	// Create сохраняет заказ с позициями, назначая недостающие идентификаторы.
	Create(ctx context.Context, order Order) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// Delete удаляет заказ и возвращает его состояние до удаления.
	Delete(ctx context.Context, id string) (Order, error)
}

// Session — явная единица работы в рамках одного запроса.
// После Commit или Rollback сессия закрыта; повторный Rollback ничего не делает.
type Session interface {
	Products() ProductRepository
	Ledger() InventoryLedger
	Orders() OrderRepository
	Outbox() OutboxWriter
	Timeline() TimelineWriter
	// Commit фиксирует изменения. При ошибке все изменения сессии отменены.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SessionFactory открывает сессии.
type SessionFactory interface {
	Begin(ctx context.Context) (Session, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxWriter — запись в outbox в рамках сессии.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	OutboxWriter
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineWriter — запись событий таймлайна в рамках сессии.
type TimelineWriter interface {
	Append(ctx context.Context, event TimelineEvent) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	TimelineWriter
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release удаляет ключ, чтобы повтор запроса выполнился заново. Отсутствие ключа — не ошибка.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OrderStatusCache — кэш статуса оплаты заказа.
type OrderStatusCache interface {
	Get(ctx context.Context, orderID string) (PaymentStatus, bool, error)
	Set(ctx context.Context, orderID string, status PaymentStatus) error
	Invalidate(ctx context.Context, orderID string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
	// FailedCount — сообщения, исчерпавшие попытки и ушедшие в DLQ.
	FailedCount int
}

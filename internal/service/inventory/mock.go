package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// MockLedger — обёртка над InventoryLedger с внедрением ошибок для тестов.
// Если Next не задан, операции только считаются.
type MockLedger struct {
	Next domain.InventoryLedger

	// ReserveErrs — ошибка Reserve для конкретного товара.
	ReserveErrs map[string]error
	ReleaseErr  error

	mu           sync.Mutex
	ReserveCalls []domain.Reservation
	ReleaseCalls []domain.Reservation
}

// NewMockLedger возвращает mock поверх next с успешным сценарием по умолчанию.
func NewMockLedger(next domain.InventoryLedger) *MockLedger {
	return &MockLedger{Next: next, ReserveErrs: make(map[string]error)}
}

// Reserve возвращает настроенную ошибку для товара или делегирует в Next.
func (m *MockLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	m.mu.Lock()
	m.ReserveCalls = append(m.ReserveCalls, domain.Reservation{ProductID: productID, Quantity: qty})
	err := m.ReserveErrs[productID]
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if m.Next == nil {
		return nil
	}
	return m.Next.Reserve(ctx, productID, qty)
}

// Release возвращает настроенную ошибку или делегирует в Next.
func (m *MockLedger) Release(ctx context.Context, productID string, qty int32) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, domain.Reservation{ProductID: productID, Quantity: qty})
	err := m.ReleaseErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if m.Next == nil {
		return nil
	}
	return m.Next.Release(ctx, productID, qty)
}

// Released возвращает копию вызовов Release.
func (m *MockLedger) Released() []domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Reservation(nil), m.ReleaseCalls...)
}

var _ domain.InventoryLedger = (*MockLedger)(nil)

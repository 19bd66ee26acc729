package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// orderRepository хранит копии агрегатов, чтобы внешние изменения срезов позиций их не задевали.
type orderRepository struct {
	store *Store
	sess  *session
}

// Create сохраняет заказ с позициями и назначает недостающие идентификаторы.
func (r orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	unlock, err := r.store.lock(r.sess, true)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()

	order = order.Clone()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, exists := r.store.orders[order.ID]; exists {
		return domain.Order{}, domain.PersistenceError("create order", fmt.Errorf("duplicate id %s", order.ID))
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.store.now()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].OrderID = order.ID
		if order.Items[i].CreatedAt.IsZero() {
			order.Items[i].CreatedAt = order.CreatedAt
		}
	}
	r.store.orders[order.ID] = order

	id := order.ID
	r.sess.onRollback(func() { delete(r.store.orders, id) })
	return order.Clone(), nil
}

// GetByID возвращает заказ вместе с позициями или ErrOrderNotFound.
func (r orderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	unlock, err := r.store.lock(r.sess, false)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// List возвращает все заказы в порядке создания.
func (r orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.filter(ctx, func(domain.Order) bool { return true })
}

// ListByCustomer возвращает заказы клиента в порядке создания.
func (r orderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.filter(ctx, func(o domain.Order) bool { return o.CustomerID == customerID })
}

// Delete удаляет заказ и возвращает его последнее состояние.
func (r orderRepository) Delete(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	unlock, err := r.store.lock(r.sess, true)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	delete(r.store.orders, id)

	r.sess.onRollback(func() { r.store.orders[id] = order })
	return order.Clone(), nil
}

func (r orderRepository) filter(ctx context.Context, keep func(domain.Order) bool) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock, err := r.store.lock(r.sess, false)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if keep(order) {
			result = append(result, order.Clone())
		}
	}
	unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ domain.OrderRepository = orderRepository{}

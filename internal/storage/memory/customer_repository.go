package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type customerRepository struct {
	store *Store
}

func (r customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	if _, exists := r.store.customers[customer.ID]; exists {
		return domain.Customer{}, domain.PersistenceError("create customer", fmt.Errorf("duplicate id %s", customer.ID))
	}
	customer.CreatedAt = r.store.now()
	r.store.customers[customer.ID] = customer
	return customer, nil
}

func (r customerRepository) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	return customer, nil
}

func (r customerRepository) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.customers[id]
	return ok, nil
}

func (r customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	result := make([]domain.Customer, 0, len(r.store.customers))
	for _, customer := range r.store.customers {
		result = append(result, customer)
	}
	r.store.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ domain.CustomerRepository = customerRepository{}

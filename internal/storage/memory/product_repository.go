package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type productRepository struct {
	store *Store
	sess  *session
}

// Create добавляет товар; пустой ID заменяется сгенерированным.
func (r productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	unlock, err := r.store.lock(r.sess, true)
	if err != nil {
		return domain.Product{}, err
	}
	defer unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := r.store.products[product.ID]; exists {
		return domain.Product{}, domain.PersistenceError("create product", fmt.Errorf("duplicate id %s", product.ID))
	}
	now := r.store.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.store.products[product.ID] = product

	id := product.ID
	r.sess.onRollback(func() { delete(r.store.products, id) })
	return product, nil
}

// GetByID возвращает товар или ErrProductNotFound.
func (r productRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	unlock, err := r.store.lock(r.sess, false)
	if err != nil {
		return domain.Product{}, err
	}
	defer unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return product, nil
}

// List фильтрует по подстроке названия, сортирует и возвращает страницу.
func (r productRepository) List(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = query.Normalize()

	unlock, err := r.store.lock(r.sess, false)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(query.Name)
	result := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		if name != "" && !strings.Contains(strings.ToLower(product.Name), name) {
			continue
		}
		result = append(result, product)
	}
	unlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		var cmp int
		if query.SortBy == domain.ProductSortPrice {
			cmp = a.Price.Cmp(b.Price)
		} else {
			cmp = strings.Compare(a.Name, b.Name)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.ID, b.ID)
		}
		if query.Descending {
			return cmp > 0
		}
		return cmp < 0
	})

	offset := query.Offset()
	if offset >= len(result) {
		return []domain.Product{}, nil
	}
	end := offset + query.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// Update перезаписывает карточку товара, включая остаток (ручная корректировка).
func (r productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	unlock, err := r.store.lock(r.sess, true)
	if err != nil {
		return domain.Product{}, err
	}
	defer unlock()

	prev, ok := r.store.products[product.ID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
	}
	product.CreatedAt = prev.CreatedAt
	product.UpdatedAt = r.store.now()
	r.store.products[product.ID] = product

	r.sess.onRollback(func() { r.store.products[prev.ID] = prev })
	return product, nil
}

// Delete удаляет товар. Позиции существующих заказов хранят снимок и не затрагиваются.
func (r productRepository) Delete(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	unlock, err := r.store.lock(r.sess, true)
	if err != nil {
		return domain.Product{}, err
	}
	defer unlock()

	prev, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	delete(r.store.products, id)

	r.sess.onRollback(func() { r.store.products[id] = prev })
	return prev, nil
}

var _ domain.ProductRepository = productRepository{}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const productColumns = `id, name, description, price, stock, category_id, image_url, created_at, updated_at`

type productRepository struct {
	q queryer
}

// NewProductRepository создаёт PostgreSQL-реализацию каталога.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{q: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.ImageURL, product.CreatedAt, product.UpdatedAt,
	); err != nil {
		return domain.Product{}, domain.PersistenceError("insert product", err)
	}
	return product, nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	product, err := scanProduct(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, domain.PersistenceError("select product", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	query = query.Normalize()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	// Колонка и направление берутся только из закрытого набора значений.
	orderBy := "name"
	if query.SortBy == domain.ProductSortPrice {
		orderBy = "price"
	}
	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}

	rows, err := r.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE $1 = '' OR name ILIKE '%%' || $1 || '%%'
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3
	`, productColumns, orderBy, direction, direction), query.Name, query.PageSize, query.Offset())
	if err != nil {
		return nil, domain.PersistenceError("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, query.PageSize)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan product", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate products", err)
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updated, err := scanProduct(r.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price = $4,
		    stock = $5,
		    category_id = $6,
		    image_url = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.ImageURL,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
	}
	if err != nil {
		return domain.Product{}, domain.PersistenceError("update product", err)
	}
	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	deleted, err := scanProduct(r.q.QueryRowContext(ctx, `
		DELETE FROM products
		WHERE id = $1
		RETURNING `+productColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, domain.PersistenceError("delete product", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

var _ domain.ProductRepository = (*productRepository)(nil)

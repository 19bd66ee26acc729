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

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию справочника клиентов.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	customer.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, first_name, last_name, email, phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.CreatedAt); err != nil {
		return domain.Customer{}, domain.PersistenceError("insert customer", err)
	}
	return customer, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var c domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	if err != nil {
		return domain.Customer{}, domain.PersistenceError("select customer", err)
	}
	return c, nil
}

func (r *customerRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, domain.PersistenceError("customer exists", err)
	}
	return exists, nil
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at
		FROM customers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, domain.PersistenceError("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, domain.PersistenceError("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate customers", err)
	}
	return customers, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)

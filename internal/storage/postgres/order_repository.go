package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const orderColumns = `id, customer_id, payment_status, total_amount, created_at`

// orderRepository работает либо внутри транзакции сессии (tx), либо открывает
// собственную транзакцию на каждую запись (db).
type orderRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) reader() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *orderRepository) inTx(ctx context.Context, fn func(q queryer) error) (err error) {
	if r.tx != nil {
		return fn(r.tx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError("begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return domain.PersistenceError("commit", err)
	}
	return nil
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	order = order.Clone()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	err := r.inTx(ctx, func(q queryer) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5)
		`, order.ID, order.CustomerID, string(order.PaymentStatus), order.TotalAmount, order.CreatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, order.CustomerID)
			}
			return domain.PersistenceError("insert order", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.OrderID = order.ID
			if item.CreatedAt.IsZero() {
				item.CreatedAt = order.CreatedAt
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (
					id, order_id, position, product_id, product_name, quantity, unit_price, price, created_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`,
				item.ID, order.ID, i, item.ProductID, item.ProductName,
				item.Quantity, item.UnitPrice, item.Price, item.CreatedAt,
			); err != nil {
				return domain.PersistenceError("insert order item", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orders, err := r.query(ctx, r.reader(), `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.query(ctx, r.reader(), `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at, id
	`)
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.query(ctx, r.reader(), `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at, id
	`, customerID)
}

// Delete блокирует строку заказа, загружает позиции и удаляет агрегат.
// Параллельный Delete того же заказа ждёт блокировку и получает ErrOrderNotFound.
func (r *orderRepository) Delete(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deleted domain.Order
	err := r.inTx(ctx, func(q queryer) error {
		orders, err := r.query(ctx, q, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE id = $1
			FOR UPDATE
		`, id)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return domain.ErrOrderNotFound
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
			return domain.PersistenceError("delete order", err)
		}
		deleted = orders[0]
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return deleted, nil
}

// query читает заказы, затем одним запросом подгружает их позиции.
func (r *orderRepository) query(ctx context.Context, q queryer, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("select orders", err)
	}

	orders := make([]domain.Order, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			order  domain.Order
			status string
		)
		if err := rows.Scan(&order.ID, &order.CustomerID, &status, &order.TotalAmount, &order.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, domain.PersistenceError("scan order", err)
		}
		order.PaymentStatus = domain.PaymentStatus(status)
		order.Items = []domain.OrderItem{}
		index[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, domain.PersistenceError("iterate orders", err)
	}
	_ = rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	if err := r.loadItems(ctx, q, ids, func(item domain.OrderItem) {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q queryer, orderIDs []string, add func(domain.OrderItem)) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return domain.PersistenceError("select order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Price, &item.CreatedAt,
		); err != nil {
			return domain.PersistenceError("scan order item", err)
		}
		add(item)
	}
	if err := rows.Err(); err != nil {
		return domain.PersistenceError("iterate order items", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503"
}

var _ domain.OrderRepository = (*orderRepository)(nil)

package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Суммарное количество одного товара в заказе не помещается в int32.
	ErrItemQtyTooLarge = errors.New("total item quantity per product is too large")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Цена товара отрицательна или точнее двух знаков после запятой.
	ErrProductPriceInvalid = errors.New("product price must be non-negative with at most 2 decimal places")
	// Остаток товара не может быть отрицательным.
	ErrProductStockInvalid = errors.New("product stock must be non-negative")
	// Ошибка отсутствующего имени клиента.
	ErrCustomerNameRequired = errors.New("customer first name is required")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrCustomerNotFound возвращается, если клиента нет в справочнике.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock означает, что остатка не хватает для резерва.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPersistence оборачивает сбои хранилища (БД недоступна, коммит не прошёл и т.п.).
	ErrPersistence = errors.New("persistence failure")
	// ErrSessionClosed возвращается при работе с уже завершённой сессией.
	ErrSessionClosed = errors.New("session already closed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — не передан хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyHashMismatch — ключ уже использован для другого запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError уточняет, по какому товару не хватило остатка.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Unwrap позволяет сравнивать ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InsufficientStockProduct возвращает идентификатор товара из ошибки нехватки остатка.
func InsufficientStockProduct(err error) (string, bool) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.ProductID, true
	}
	return "", false
}

// PersistenceError оборачивает ошибку хранилища в ErrPersistence, сохраняя исходную причину.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// IsPersistence проверяет, является ли ошибка сбоем хранилища.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsValidation проверяет, относится ли ошибка к ошибкам валидации входных данных.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrCustomerRequired,
		ErrProductRequired,
		ErrItemsRequired,
		ErrItemQtyInvalid,
		ErrItemQtyTooLarge,
		ErrItemPriceInvalid,
		ErrProductNameRequired,
		ErrProductPriceInvalid,
		ErrProductStockInvalid,
		ErrCustomerNameRequired,
		ErrOrderIDRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

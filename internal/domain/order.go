package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus — открытый строковый статус оплаты. Переходы между статусами здесь не определены.
type PaymentStatus string

// PaymentStatusPending выставляется каждому новому заказу.
const PaymentStatusPending PaymentStatus = "Pending"

// OrderItem представляет одну позицию заказа со снимком цены на момент оформления.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	// ProductName — название товара на момент оформления.
	ProductName string
	Quantity    int32
	// UnitPrice — цена за единицу на момент оформления.
	UnitPrice decimal.Decimal
	// Price = UnitPrice * Quantity, не меняется при последующем изменении цены товара.
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует заказ и его позиции в порядке, в котором они были переданы.
type Order struct {
	ID            string
	CustomerID    string
	PaymentStatus PaymentStatus
	TotalAmount   decimal.Decimal
	Items         []OrderItem
	CreatedAt     time.Time
}

// OrderLine — строка запроса на создание заказа.
type OrderLine struct {
	ProductID string
	Quantity  int32
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	sum := decimal.Zero
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() || item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		sum = sum.Add(item.Price)
	}
	if !sum.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Clone возвращает копию заказа с независимым срезом позиций.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

// Lines возвращает количество по каждой позиции заказа (для освобождения резерва).
func (o *Order) Lines() []OrderLine {
	lines := make([]OrderLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

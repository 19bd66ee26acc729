package domain

import (
	"encoding/json"
	"time"
)

// AggregateOrder — тип агрегата в outbox для событий заказа.
const AggregateOrder = "order"

// Типы событий заказа, попадающих в outbox.
const (
	EventOrderCreated = "OrderCreated"
	EventOrderDeleted = "OrderDeleted"
)

// OrderEventItem — позиция заказа в полезной нагрузке события.
type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Price     string `json:"price"`
}

// OrderEvent — полезная нагрузка событий OrderCreated/OrderDeleted.
// Денежные суммы передаются строками с двумя знаками после запятой.
type OrderEvent struct {
	OrderID       string           `json:"order_id"`
	CustomerID    string           `json:"customer_id"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	TotalAmount   string           `json:"total_amount"`
	Items         []OrderEventItem `json:"items"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewOrderEvent строит outbox-сообщение по заказу.
func NewOrderEvent(eventType string, order Order, at time.Time) (OutboxMessage, error) {
	event := OrderEvent{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount.StringFixed(PriceScale),
		Items:         make([]OrderEventItem, 0, len(order.Items)),
		OccurredAt:    at.UTC(),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(PriceScale),
			Price:     item.Price.StringFixed(PriceScale),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

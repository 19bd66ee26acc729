package domain

import "time"

const (
	// TimelineOrderCreated — заказ оформлен, остатки зарезервированы.
	TimelineOrderCreated = "order_created"
	// TimelineOrderDeleted — заказ удалён, остатки возвращены.
	TimelineOrderDeleted = "order_deleted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

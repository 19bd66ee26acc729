package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []orderLineRequest `json:"items"`
}

func (r createOrderRequest) lines() []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// Денежные суммы отдаются строками с двумя знаками, чтобы клиенты не теряли точность.
type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Price       string `json:"price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id"`
	PaymentStatus string              `json:"payment_status"`
	TotalAmount   string              `json:"total_amount"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

type orderStatusResponse struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

type timelineEventResponse struct {
	OrderID    string    `json:"order_id"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
	CategoryID  string          `json:"category_id"`
	ImageURL    string          `json:"image_url"`
}

func (r productRequest) product(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
		ImageURL:    r.ImageURL,
	}
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Stock       int32     `json:"stock"`
	CategoryID  string    `json:"category_id,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type customerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.PriceScale)
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			Price:       money(item.Price),
		})
	}
	return orderResponse{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   money(order.TotalAmount),
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return out
}

func toTimelineResponses(events []domain.TimelineEvent) []timelineEventResponse {
	out := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, timelineEventResponse{
			OrderID:    event.OrderID,
			Type:       event.Type,
			Reason:     event.Reason,
			OccurredAt: event.Occurred,
		})
	}
	return out
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

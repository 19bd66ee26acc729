// Package httpapi публикует сборщик заказов и каталог по HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

// OrderService — операции над заказами, доступные через API.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, lines []domain.OrderLine) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersForCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (domain.PaymentStatus, error)
	OrderTimeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
}

// CatalogService — операции каталога товаров и справочника клиентов.
type CatalogService interface {
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) (domain.Product, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// Config описывает зависимости роутера. Idempotency и Metrics необязательны.
type Config struct {
	Orders         OrderService
	Catalog        CatalogService
	Idempotency    domain.IdempotencyRepository
	IdempotencyTTL time.Duration
	// RequestTimeout ограничивает обработку одного запроса; 0 — без ограничения.
	RequestTimeout time.Duration
	Metrics        *metrics.HTTPMetrics
	Logger         *log.Entry
	Now            func() time.Time
}

type handler struct {
	orders  OrderService
	catalog CatalogService
	logger  *log.Entry
}

// NewRouter собирает chi роутер с маршрутами /api.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	h := &handler{orders: cfg.Orders, catalog: cfg.Catalog, logger: logger}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(accessLog(logger, cfg.Metrics))
	router.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		router.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(idempotent(cfg.Idempotency, cfg.IdempotencyTTL, now, logger)).Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.Get("/{orderID}", h.getOrder)
			r.Delete("/{orderID}", h.deleteOrder)
			r.Get("/{orderID}/status", h.orderStatus)
			r.Get("/{orderID}/timeline", h.orderTimeline)
		})
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/", h.listProducts)
			r.Get("/{productID}", h.getProduct)
			r.Put("/{productID}", h.updateProduct)
			r.Delete("/{productID}", h.deleteProduct)
		})
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.createCustomer)
			r.Get("/", h.listCustomers)
			r.Get("/{customerID}", h.getCustomer)
			r.Get("/{customerID}/orders", h.customerOrders)
		})
	})

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, errorBody{Code: codeNotFound, Message: "route not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, errorBody{Code: "method_not_allowed", Message: "method not allowed"})
	})
	return router
}

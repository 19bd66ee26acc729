// Package catalog обслуживает каталог товаров и справочник клиентов.
package catalog

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Service проверяет входные данные и пишет в репозитории каталога.
// Остатки здесь задаются администратором целиком; во время оформления
// и удаления заказов их меняет только InventoryLedger.
type Service struct {
	products  domain.ProductRepository
	customers domain.CustomerRepository
	logger    *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, customers domain.CustomerRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{products: products, customers: customers, logger: logger}
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product = normalizeProduct(product)
	if err := errors.Join(product.Validate()...); err != nil {
		return domain.Product{}, err
	}
	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, wrap("create product", err)
	}
	s.logger.WithField("product_id", created.ID).Info("product created")
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, wrap("get product", err)
	}
	return product, nil
}

// ListProducts возвращает страницу каталога; параметры запроса нормализуются.
func (s *Service) ListProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	query = query.Normalize()
	query.Name = strings.TrimSpace(query.Name)
	products, err := s.products.List(ctx, query)
	if err != nil {
		return nil, wrap("list products", err)
	}
	return products, nil
}

// UpdateProduct перезаписывает карточку товара. Уже оформленные заказы
// хранят свои снимки цен и не меняются.
func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product = normalizeProduct(product)
	if product.ID == "" {
		return domain.Product{}, domain.ErrProductRequired
	}
	if err := errors.Join(product.Validate()...); err != nil {
		return domain.Product{}, err
	}
	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return domain.Product{}, wrap("update product", err)
	}
	s.logger.WithField("product_id", updated.ID).Info("product updated")
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) (domain.Product, error) {
	deleted, err := s.products.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, wrap("delete product", err)
	}
	s.logger.WithField("product_id", deleted.ID).Info("product deleted")
	return deleted, nil
}

func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.FirstName = strings.TrimSpace(customer.FirstName)
	customer.LastName = strings.TrimSpace(customer.LastName)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Phone = strings.TrimSpace(customer.Phone)
	if err := errors.Join(customer.Validate()...); err != nil {
		return domain.Customer{}, err
	}
	created, err := s.customers.Create(ctx, customer)
	if err != nil {
		return domain.Customer{}, wrap("create customer", err)
	}
	s.logger.WithField("customer_id", created.ID).Info("customer created")
	return created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, wrap("get customer", err)
	}
	return customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, wrap("list customers", err)
	}
	return customers, nil
}

func normalizeProduct(p domain.Product) domain.Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

func wrap(op string, err error) error {
	if errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrCustomerNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.PersistenceError(op, err)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale — количество знаков после запятой, с которым хранятся цены.
const PriceScale = 2

// Product — товар каталога. Остатком в рамках заказов управляет только InventoryLedger.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int32
	CategoryID  string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет поля товара перед записью в каталог.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() || !p.Price.Equal(p.Price.Truncate(PriceScale)) {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}

// ProductSort задаёт поле сортировки списка товаров.
type ProductSort string

const (
	ProductSortName  ProductSort = "name"
	ProductSortPrice ProductSort = "price"
)

// ProductQuery описывает фильтр, сортировку и страницу при выборке каталога.
type ProductQuery struct {
	// Name — подстрока названия (без учёта регистра).
	Name       string
	SortBy     ProductSort
	Descending bool
	// Page нумеруется с 1.
	Page     int
	PageSize int
}

// Normalize подставляет значения по умолчанию.
func (q ProductQuery) Normalize() ProductQuery {
	if q.SortBy != ProductSortPrice {
		q.SortBy = ProductSortName
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	return q
}

// Offset возвращает смещение первой записи страницы.
func (q ProductQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

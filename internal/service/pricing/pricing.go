// Package pricing считает снимки цен позиций и итог заказа в десятичной арифметике.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Snapshot возвращает цену позиции: цена за единицу, умноженная на количество.
// Результат хранит ту же точность, что и цена товара.
func Snapshot(unitPrice decimal.Decimal, qty int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(qty)).Round(domain.PriceScale)
}

// Total суммирует цены позиций.
func Total(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total.Round(domain.PriceScale)
}

package inventory

import (
	"fmt"
	"math"
	"sort"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Plan сводит строки заказа в резервы: по одному на товар, количество суммируется,
// порядок — по возрастанию ProductID. Все операции над остатками идут в этом порядке,
// поэтому два заказа с пересекающимися товарами не ждут друг друга по кругу.
// Строки должны пройти ValidateLines: сумма по товару обрезается до math.MaxInt32.
func Plan(lines []domain.OrderLine) []domain.Reservation {
	totals := lineTotals(lines)

	plan := make([]domain.Reservation, 0, len(totals))
	for productID, qty := range totals {
		plan = append(plan, domain.Reservation{ProductID: productID, Quantity: int32(min(qty, math.MaxInt32))})
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].ProductID < plan[j].ProductID
	})

	return plan
}

// ValidateLines проверяет строки заказа до любых изменений остатков.
func ValidateLines(lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return domain.ErrItemsRequired
	}
	for _, line := range lines {
		r := domain.Reservation{ProductID: line.ProductID, Quantity: line.Quantity}
		if errs := r.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	for productID, qty := range lineTotals(lines) {
		if qty > math.MaxInt32 {
			return fmt.Errorf("%w: %s", domain.ErrItemQtyTooLarge, productID)
		}
	}
	return nil
}

func lineTotals(lines []domain.OrderLine) map[string]int64 {
	totals := make(map[string]int64, len(lines))
	for _, line := range lines {
		totals[line.ProductID] += int64(line.Quantity)
	}
	return totals
}

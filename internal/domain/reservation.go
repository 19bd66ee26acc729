package domain

// Reservation — списание остатка одного товара в рамках операции над заказом.
type Reservation struct {
	ProductID string
	Quantity  int32
}

// Validate проверяет, корректно ли заполнены ключевые поля резервирования.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrProductRequired)
	}
	if r.Quantity <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}

	return errs
}

package domain

import "time"

// Customer — запись справочника клиентов. Заказы ссылаются на клиента только по ID.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error
	if c.FirstName == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	return errs
}

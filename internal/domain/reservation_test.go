package domain

import "testing"

func TestReservation_Validate(t *testing.T) {
	tests := []struct {
		name        string
		reservation *Reservation
		errCount    int
	}{
		{
			name:        "valid reservation",
			reservation: &Reservation{ProductID: "p-1", Quantity: 5},
			errCount:    0,
		},
		{
			name:        "missing product ID",
			reservation: &Reservation{Quantity: 5},
			errCount:    1,
		},
		{
			name:        "zero quantity",
			reservation: &Reservation{ProductID: "p-1"},
			errCount:    1,
		},
		{
			name:        "negative quantity and no product",
			reservation: &Reservation{Quantity: -5},
			errCount:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.reservation.Validate()
			if len(errs) != tt.errCount {
				t.Errorf("Validate() error count = %d, want %d, errors: %v", len(errs), tt.errCount, errs)
			}
		})
	}
}

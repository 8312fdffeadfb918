package models

import "time"

const (
	PaymentSandbox = "Sandbox"

	TransactionCompleted = "completed"
)

// Transaction records a completed payment attempt. Rows are never updated.
type Transaction struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

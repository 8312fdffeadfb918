package models

// Operator administers a fleet of buses and signs in on the operator menu
// with a PIN. Only the bcrypt hash of the PIN is stored.
type Operator struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	PINHash string `json:"-"`
}

// User is a customer identified by phone number.
type User struct {
	ID          int64  `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

package models

import "time"

// Bus is one scheduled departure with its seat inventory.
// AvailableSeats only moves through the commit and cancel transactions.
type Bus struct {
	ID             int64     `json:"id"`
	Route          string    `json:"route"`
	OperatorID     int64     `json:"operator_id"`
	OperatorName   string    `json:"operator"`
	DepartureTime  time.Time `json:"departure_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Price          int64     `json:"price"`
}

// NewBus is the admin payload for scheduling a bus.
type NewBus struct {
	Route         string    `json:"route"`
	OperatorID    int64     `json:"operator_id"`
	DepartureTime time.Time `json:"departure_time"`
	TotalSeats    int       `json:"total_seats"`
	Price         int64     `json:"price"`
}

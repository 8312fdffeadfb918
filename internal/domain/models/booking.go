package models

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking still holds its seat.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Booking is one seat reservation. UserID is zero for walk-ins.
type Booking struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id,omitempty"`
	BusID      int64         `json:"bus_id"`
	SeatNumber int           `json:"seat_number"`
	Code       string        `json:"booking_code"`
	Status     BookingStatus `json:"status"`
	Boarded    bool          `json:"boarded"`
	CreatedAt  time.Time     `json:"created_at"`
}

// BookingDetail is a booking joined with its bus, used for lookups.
type BookingDetail struct {
	Booking
	Route         string    `json:"route"`
	DepartureTime time.Time `json:"departure_time"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
}

// NormalizeCode trims and upper-cases a caller-supplied booking code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

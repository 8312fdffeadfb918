package utils

import (
	"time"
)

const (
	layoutCustomer = "02/01/2006, 15:04:05"
	layoutOperator = "2006-01-02 15:04"
)

// FormatCustomerTime renders a departure the way the customer menu shows it (dd/mm/yyyy, hh:mm:ss).
func FormatCustomerTime(t time.Time) string {
	return t.In(time.Local).Format(layoutCustomer)
}

// FormatOperatorTime renders a departure as "YYYY-MM-DD HH:MM" in UTC.
func FormatOperatorTime(t time.Time) string {
	return t.UTC().Format(layoutOperator)
}

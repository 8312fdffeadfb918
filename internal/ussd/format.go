package ussd

import (
	"fmt"
	"strings"

	"busussd/internal/domain/models"
	"busussd/internal/session"
	"busussd/internal/utils"
)

func snapshot(buses []models.Bus) []session.BusRef {
	out := make([]session.BusRef, 0, len(buses))
	for _, b := range buses {
		out = append(out, session.BusRef{
			ID:             b.ID,
			Route:          b.Route,
			DepartureTime:  b.DepartureTime,
			AvailableSeats: b.AvailableSeats,
			TotalSeats:     b.TotalSeats,
			Price:          b.Price,
		})
	}
	return out
}

func customerBusLines(buses []models.Bus) string {
	var sb strings.Builder
	for i, b := range buses {
		fmt.Fprintf(&sb, "%d. %s | %s | %d seats | %s\n",
			i+1, b.Route, utils.FormatCustomerTime(b.DepartureTime), b.AvailableSeats, utils.FormatPrice(b.Price))
	}
	return sb.String()
}

func operatorBusLines(buses []models.Bus, line func(models.Bus) string) string {
	var sb strings.Builder
	for i, b := range buses {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line(b))
	}
	return sb.String()
}

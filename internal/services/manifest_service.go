package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"busussd/internal/domain/models"
	"busussd/internal/repositories"
	"busussd/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// ManifestService renders the passenger manifest an operator prints before departure.
type ManifestService struct {
	Store repositories.Store
}

// Generate returns the PDF bytes and a download filename for a bus.
// Cancelled bookings are left off the manifest.
func (s ManifestService) Generate(ctx context.Context, busID int64) ([]byte, string, error) {
	bus, err := s.Store.GetBus(ctx, busID)
	if err != nil {
		return nil, "", err
	}
	bookings, err := s.Store.ListBusBookings(ctx, busID)
	if err != nil {
		return nil, "", err
	}
	active := make([]models.BookingDetail, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.Active() {
			active = append(active, b)
		}
	}
	return buildManifestPDF(bus, active, time.Now())
}

func buildManifestPDF(bus models.Bus, bookings []models.BookingDetail, printed time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Passenger Manifest", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PASSENGER MANIFEST")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		fmt.Sprintf("Route      : %s", safe(bus.Route, "-")),
		fmt.Sprintf("Operator   : %s", safe(bus.OperatorName, "-")),
		fmt.Sprintf("Departure  : %s", utils.FormatOperatorTime(bus.DepartureTime)),
		fmt.Sprintf("Seats      : %d sold / %d total", bus.TotalSeats-bus.AvailableSeats, bus.TotalSeats),
		fmt.Sprintf("Fare       : %s", utils.FormatAmount(bus.Price)),
		fmt.Sprintf("Printed    : %s", printed.Format("2006-01-02 15:04")),
	}
	for _, line := range header {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	widths := []float64{20, 35, 40, 35, 30}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Seat", "Code", "Phone", "Status", "Boarded"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, b := range bookings {
		boarded := "no"
		if b.Boarded {
			boarded = "yes"
		}
		phone := b.PhoneNumber
		if b.UserID == 0 {
			phone = "walk-in"
		}
		row := []string{
			fmt.Sprintf("%d", b.SeatNumber),
			b.Code,
			safe(phone, "-"),
			strings.ToUpper(string(b.Status)),
			boarded,
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 7, v, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(bookings) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 7, "No passengers booked.")
		pdf.Ln(7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("MANIFEST_%d_%s.pdf", bus.ID, safeFilenamePart(bus.Route))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

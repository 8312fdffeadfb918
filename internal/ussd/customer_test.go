package ussd

import (
	"context"
	"strings"
	"testing"
	"time"

	"busussd/internal/domain/models"
	"busussd/internal/repositories"
	"busussd/internal/services"
	"busussd/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *repositories.MemoryStore
	bookings *services.BookingService
	sessions *session.MemoryStore
	bus      models.Bus
	operator models.Operator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	hash, err := services.HashPIN("2468")
	require.NoError(t, err)
	op, err := store.CreateOperator(context.Background(), "Nile Coaches", hash)
	require.NoError(t, err)
	bus := store.PutBus(models.Bus{
		Route:          "Juba - Wau",
		OperatorID:     op.ID,
		DepartureTime:  time.Now().Add(5 * time.Hour),
		TotalSeats:     10,
		AvailableSeats: 10,
		Price:          20000,
	})
	return &fixture{
		store:    store,
		bookings: services.NewBookingService(store, zap.NewNop()),
		sessions: session.NewMemoryStore(session.DefaultTTL),
		bus:      bus,
		operator: op,
	}
}

func (f *fixture) customer() *CustomerMenu {
	return &CustomerMenu{Bookings: f.bookings, Sessions: f.sessions, Log: zap.NewNop()}
}

func dial(m *CustomerMenu, sessionID, text string) string {
	return m.Handle(context.Background(), CustomerRequest{
		SessionID:   sessionID,
		ServiceCode: "*384#",
		PhoneNumber: "+211920000000",
		Text:        text,
	}).String()
}

func TestCustomerBookAndPay(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	assert.True(t, strings.HasPrefix(dial(m, "s1", ""), "CON Welcome to Bus Ticketing\n1. View Bus Schedules"))

	list := dial(m, "s1", "2")
	assert.True(t, strings.HasPrefix(list, "CON Enter Bus Number (e.g., 1):\n1. Juba - Wau | "))
	assert.Contains(t, list, "| 10 seats | 20000 SSP\n0. Back")

	assert.Equal(t, "CON Enter Seat Number (1-10):\n0. Back", dial(m, "s1", "2*1"))

	booked := dial(m, "s1", "2*1*3")
	require.True(t, strings.HasPrefix(booked, "CON Booking created! Code: "), booked)
	code := strings.SplitN(strings.TrimPrefix(booked, "CON Booking created! Code: "), "\n", 2)[0]
	assert.Len(t, code, 6)
	assert.True(t, strings.HasSuffix(booked, "\nProceed to payment:\n1. Sandbox Pay\n2. Pay at Agent\n0. Back"))

	assert.Equal(t, "END Payment confirmed. Your booking code: "+code, dial(m, "s1", "2*1*3*1"))

	d, err := f.bookings.Lookup(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, d.Status)
	assert.Equal(t, 3, d.SeatNumber)
	bus, _ := f.store.GetBus(context.Background(), f.bus.ID)
	assert.Equal(t, 9, bus.AvailableSeats)
	assert.Len(t, f.store.Transactions(), 1)
}

func TestCustomerPayAtAgentLeavesPending(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	dial(m, "s1", "2")
	dial(m, "s1", "2*1")
	booked := dial(m, "s1", "2*1*4")
	code := strings.SplitN(strings.TrimPrefix(booked, "CON Booking created! Code: "), "\n", 2)[0]

	assert.Equal(t, "END Visit an agent with your code: "+code, dial(m, "s1", "2*1*4*2"))
	d, err := f.bookings.Lookup(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, d.Status)
}

func TestCustomerSeatErrors(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	dial(m, "s1", "2")
	dial(m, "s1", "2*1")
	assert.Equal(t, "END Invalid seat number.", dial(m, "s1", "2*1*11"))

	dial(m, "s2", "2")
	dial(m, "s2", "2*1")
	require.True(t, strings.HasPrefix(dial(m, "s2", "2*1*5"), "CON Booking created!"))

	dial(m, "s3", "2")
	dial(m, "s3", "2*1")
	assert.Equal(t, "END Seat already booked.", dial(m, "s3", "2*1*5"))
}

func TestCustomerInvalidBusSelection(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	dial(m, "s1", "2")
	assert.Equal(t, "END Invalid selection.", dial(m, "s1", "2*7"))
}

func TestCustomerBackReturnsToMainMenu(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	dial(m, "s1", "2")
	dial(m, "s1", "2*1")
	assert.Equal(t, "CON "+mainMenuText, dial(m, "s1", "2*1*0"))

	// Step was reset, so a seat entry now falls back to the menu.
	assert.Equal(t, "CON "+mainMenuText, dial(m, "s1", "2*1*3"))
	bus, _ := f.store.GetBus(context.Background(), f.bus.ID)
	assert.Equal(t, 10, bus.AvailableSeats)
}

func TestCustomerNoBuses(t *testing.T) {
	f := newFixture(t)
	f.bus.AvailableSeats = 0
	f.store.PutBus(f.bus)
	m := f.customer()

	assert.Equal(t, "CON No buses available right now.\n0. Back", dial(m, "s1", "1"))
	assert.Equal(t, "CON No buses available right now.\n0. Back", dial(m, "s1", "2"))
}

func TestCustomerViewSchedules(t *testing.T) {
	f := newFixture(t)
	m := f.customer()

	out := dial(m, "s1", "1")
	assert.True(t, strings.HasPrefix(out, "CON Available Buses:\n1. Juba - Wau | "))
	assert.True(t, strings.HasSuffix(out, "0. Back"))
}

func TestCustomerLookupAndCancel(t *testing.T) {
	f := newFixture(t)
	m := f.customer()
	f.bookings.NewCode = func(prefix string, n int) (string, error) { return prefix + "QW12ER", nil }

	dial(m, "s1", "2")
	dial(m, "s1", "2*1")
	dial(m, "s1", "2*1*2")

	assert.Equal(t, "CON Enter booking code:\n0. Back", dial(m, "s2", "3"))
	out := dial(m, "s2", "3*qw12er")
	assert.True(t, strings.HasPrefix(out, "END Code: QW12ER\nRoute: Juba - Wau\nSeat: 2\nWhen: "), out)
	assert.True(t, strings.HasSuffix(out, "\nStatus: pending"))

	assert.Equal(t, "END Booking not found.", dial(m, "s2", "3*NOSUCH"))

	assert.Equal(t, "CON Enter booking code to cancel:\n0. Back", dial(m, "s3", "4"))
	assert.Equal(t, "END Booking cancelled.", dial(m, "s3", "4*QW12ER"))
	assert.Equal(t, "END Already cancelled.", dial(m, "s3", "4*QW12ER"))
	assert.Equal(t, "END Booking not found.", dial(m, "s3", "4*NOSUCH"))

	bus, _ := f.store.GetBus(context.Background(), f.bus.ID)
	assert.Equal(t, 10, bus.AvailableSeats)
}

func TestCustomerPaymentAfterCancelIsRefused(t *testing.T) {
	f := newFixture(t)
	m := f.customer()
	f.bookings.NewCode = func(prefix string, n int) (string, error) { return "ZX98CV", nil }

	dial(m, "s1", "2")
	dial(m, "s1", "2*1")
	dial(m, "s1", "2*1*6")
	assert.Equal(t, "END Booking cancelled.", dial(m, "s2", "4*ZX98CV"))

	assert.Equal(t, "END Booking can no longer be paid.", dial(m, "s1", "2*1*6*1"))
	assert.Empty(t, f.store.Transactions())
}

func TestCustomerUnknownInputShowsMenu(t *testing.T) {
	f := newFixture(t)
	m := f.customer()
	assert.Equal(t, "CON "+mainMenuText, dial(m, "s1", "9"))
	assert.Equal(t, "CON "+mainMenuText, dial(m, "s1", "2*1*3"))
}

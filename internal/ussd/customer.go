package ussd

import (
	"context"
	"errors"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
	"busussd/internal/services"
	"busussd/internal/session"
	"busussd/internal/utils"

	"go.uber.org/zap"
)

const customerKeyPrefix = "customer:"

const mainMenuText = "Welcome to Bus Ticketing\n1. View Bus Schedules\n2. Book Ticket\n3. Check Booking\n4. Cancel Booking"

// CustomerRequest is one round from the customer channel.
type CustomerRequest struct {
	SessionID   string
	ServiceCode string
	PhoneNumber string
	Text        string
}

// CustomerMenu drives listing, booking, lookup and cancellation for callers.
type CustomerMenu struct {
	Bookings *services.BookingService
	Sessions session.Store
	Log      *zap.Logger
}

func mainMenu() Reply { return Con(mainMenuText) }

// Handle maps the accumulated input and the stored session to the next reply.
// Store failures never reach the caller beyond a generic message.
func (m *CustomerMenu) Handle(ctx context.Context, req CustomerRequest) Reply {
	sess, release, err := m.Sessions.Acquire(ctx, customerKeyPrefix+req.SessionID, session.TopMenu{})
	if err != nil {
		m.fail(ctx, req, "acquire_session", err)
		return End("Error. Try again later.")
	}
	defer release()

	reply, err := m.respond(ctx, sess, req)
	if err != nil {
		m.fail(ctx, req, "respond", err)
		return End("Error. Try again later.")
	}
	if err := m.Sessions.Save(ctx, sess); err != nil {
		m.fail(ctx, req, "save_session", err)
		if reply.Continue {
			return End("Error. Try again later.")
		}
	}
	return reply
}

func (m *CustomerMenu) fail(ctx context.Context, req CustomerRequest, action string, err error) {
	if m.Log == nil {
		return
	}
	m.Log.Error("customer menu failed",
		zap.String("action", action),
		zap.String("session_id", req.SessionID),
		zap.String("request_id", utils.RequestIDFrom(ctx)),
		zap.Error(err))
}

func (m *CustomerMenu) respond(ctx context.Context, sess *session.Session, req CustomerRequest) (Reply, error) {
	in := ParseInput(req.Text)
	if in.IsReset() {
		sess.State = session.TopMenu{}
		return mainMenu(), nil
	}

	userID, err := m.Bookings.EnsureCustomer(ctx, req.PhoneNumber)
	if err != nil {
		return Reply{}, err
	}

	switch {
	case in.Is("1"):
		buses, err := m.Bookings.AvailableBuses(ctx)
		if err != nil {
			return Reply{}, err
		}
		sess.State = session.BusList{Buses: snapshot(buses)}
		if len(buses) == 0 {
			return Con("No buses available right now.\n0. Back"), nil
		}
		return Con("Available Buses:\n" + customerBusLines(buses) + "0. Back"), nil

	case in.Is("2"):
		buses, err := m.Bookings.AvailableBuses(ctx)
		if err != nil {
			return Reply{}, err
		}
		sess.State = session.AwaitBus{Buses: snapshot(buses)}
		if len(buses) == 0 {
			return Con("No buses available right now.\n0. Back"), nil
		}
		return Con("Enter Bus Number (e.g., 1):\n" + customerBusLines(buses) + "0. Back"), nil
	}

	if in.First() == "2" {
		switch st := sess.State.(type) {
		case session.AwaitBus:
			if in.Len() == 2 {
				return m.pickBus(sess, st, in), nil
			}
		case session.AwaitSeat:
			if in.Len() == 3 {
				return m.commitSeat(ctx, sess, st, userID, in), nil
			}
		case session.AwaitPayment:
			if in.Len() == 4 {
				if reply, ok, err := m.pay(ctx, st, in.Last()); err != nil || ok {
					return reply, err
				}
			}
		}
	}

	switch {
	case in.Is("3"):
		return Con("Enter booking code:\n0. Back"), nil
	case in.First() == "3" && in.Len() == 2:
		return m.lookup(ctx, in.Last())
	case in.Is("4"):
		return Con("Enter booking code to cancel:\n0. Back"), nil
	case in.First() == "4" && in.Len() == 2:
		return m.cancel(ctx, in.Last()), nil
	}

	return mainMenu(), nil
}

func (m *CustomerMenu) pickBus(sess *session.Session, st session.AwaitBus, in Input) Reply {
	idx, _ := in.LastInt()
	bus, ok := st.Pick(idx)
	if !ok {
		return End("Invalid selection.")
	}
	sess.State = session.AwaitSeat{BusID: bus.ID, AvailableSeats: bus.AvailableSeats}
	return Conf("Enter Seat Number (1-%d):\n0. Back", bus.AvailableSeats)
}

func (m *CustomerMenu) commitSeat(ctx context.Context, sess *session.Session, st session.AwaitSeat, userID int64, in Input) Reply {
	seat, _ := in.LastInt()
	booking, err := m.Bookings.BookSeat(ctx, userID, st.BusID, seat)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSeatOutOfRange):
		return End("Invalid seat number.")
	case errors.Is(err, domain.ErrSeatTaken):
		return End("Seat already booked.")
	case errors.Is(err, domain.ErrNoSeats):
		return End("No seats available.")
	default:
		m.fail(ctx, CustomerRequest{SessionID: sess.Key}, "book_seat", err)
		return End("Booking failed. Try again.")
	}

	sess.State = session.AwaitPayment{BusID: st.BusID, BookingID: booking.ID, Code: booking.Code}
	return Conf("Booking created! Code: %s\nProceed to payment:\n1. Sandbox Pay\n2. Pay at Agent\n0. Back", booking.Code)
}

// pay handles the payment choice; ok is false for choices it does not know,
// which then fall back to the main menu.
func (m *CustomerMenu) pay(ctx context.Context, st session.AwaitPayment, choice string) (Reply, bool, error) {
	switch choice {
	case "1":
		_, err := m.Bookings.Pay(ctx, st.BookingID, models.PaymentSandbox)
		if errors.Is(err, domain.ErrNotPending) {
			return End("Booking can no longer be paid."), true, nil
		}
		if err != nil {
			return Reply{}, true, err
		}
		return Endf("Payment confirmed. Your booking code: %s", st.Code), true, nil
	case "2":
		return Endf("Visit an agent with your code: %s", st.Code), true, nil
	}
	return Reply{}, false, nil
}

func (m *CustomerMenu) lookup(ctx context.Context, code string) (Reply, error) {
	d, err := m.Bookings.Lookup(ctx, code)
	if errors.Is(err, domain.ErrBookingNotFound) {
		return End("Booking not found."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Endf("Code: %s\nRoute: %s\nSeat: %d\nWhen: %s\nStatus: %s",
		d.Code, d.Route, d.SeatNumber, utils.FormatCustomerTime(d.DepartureTime), d.Status), nil
}

func (m *CustomerMenu) cancel(ctx context.Context, code string) Reply {
	_, err := m.Bookings.Cancel(ctx, code)
	switch {
	case err == nil:
		return End("Booking cancelled.")
	case errors.Is(err, domain.ErrBookingNotFound):
		return End("Booking not found.")
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return End("Already cancelled.")
	default:
		m.fail(ctx, CustomerRequest{}, "cancel", err)
		return End("Cancel failed.")
	}
}

package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
	"busussd/internal/services"
	"busussd/internal/session"
	"busussd/internal/utils"

	"go.uber.org/zap"
)

const operatorKeyPrefix = "operator:"

const operatorMenuText = "Operator Menu\n1. Today's buses\n2. Verify booking\n3. Mark boarded\n4. Seats left\n5. Add walk-in (cash)\n0. Logout"

// OperatorRequest is one round from the operator channel.
type OperatorRequest struct {
	SessionID   string
	PhoneNumber string
	Text        string
}

// OperatorMenu is the PIN-gated menu operators use at the bus stand.
// Unlike the customer menu, unknown input ends the session.
type OperatorMenu struct {
	Bookings *services.BookingService
	Auth     *services.OperatorAuth
	Sessions session.Store
	Log      *zap.Logger
}

func operatorMenu() Reply { return Con(operatorMenuText) }

func (m *OperatorMenu) Handle(ctx context.Context, req OperatorRequest) Reply {
	sess, release, err := m.Sessions.Acquire(ctx, operatorKeyPrefix+req.SessionID, session.AwaitPIN{})
	if err != nil {
		m.fail(ctx, req.SessionID, "acquire_session", err)
		return End("Error. Try again.")
	}
	defer release()

	reply, err := m.respond(ctx, sess, req)
	if err != nil {
		m.fail(ctx, req.SessionID, "respond", err)
		return End("Error. Try again.")
	}
	if err := m.Sessions.Save(ctx, sess); err != nil {
		m.fail(ctx, req.SessionID, "save_session", err)
		if reply.Continue {
			return End("Error. Try again.")
		}
	}
	return reply
}

func (m *OperatorMenu) fail(ctx context.Context, sessionID, action string, err error) {
	if m.Log == nil {
		return
	}
	m.Log.Error("operator menu failed",
		zap.String("action", action),
		zap.String("session_id", sessionID),
		zap.String("request_id", utils.RequestIDFrom(ctx)),
		zap.Error(err))
}

func (m *OperatorMenu) respond(ctx context.Context, sess *session.Session, req OperatorRequest) (Reply, error) {
	in := ParseInput(req.Text)
	if in.IsReset() {
		sess.Logout()
		return Con("Enter operator PIN:"), nil
	}

	if sess.Operator == nil {
		return m.login(ctx, sess, req, in.Last())
	}

	switch st := sess.State.(type) {
	case session.OperatorMenu:
		return m.menuChoice(ctx, sess, in.Last())
	case session.AwaitVerifyCode:
		if in.Len() >= 2 {
			sess.State = session.OperatorMenu{}
			return m.verify(ctx, in.Last())
		}
	case session.AwaitBoardCode:
		if in.Len() >= 2 {
			sess.State = session.OperatorMenu{}
			return m.board(ctx, in.Last()), nil
		}
	case session.AwaitWalkInBus:
		if in.Len() >= 2 {
			// A resent trail lands on the menu instead of selling again.
			sess.State = session.OperatorMenu{}
			return m.walkIn(ctx, sess, st, in), nil
		}
	}
	return End("Unsupported option."), nil
}

func (m *OperatorMenu) login(ctx context.Context, sess *session.Session, req OperatorRequest, pin string) (Reply, error) {
	caller := strings.TrimSpace(req.PhoneNumber)
	if caller == "" {
		caller = sess.Key
	}
	op, err := m.Auth.Authenticate(ctx, caller, pin)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTooManyAttempts):
		sess.Logout()
		return End("Too many attempts. Try again later."), nil
	case errors.Is(err, domain.ErrInvalidPIN):
		sess.Logout()
		return Con("Invalid PIN. Try again:\n0. Back"), nil
	default:
		return Reply{}, err
	}

	sess.Operator = &session.Operator{ID: op.ID, Name: op.Name}
	sess.State = session.OperatorMenu{}
	return operatorMenu(), nil
}

func (m *OperatorMenu) menuChoice(ctx context.Context, sess *session.Session, choice string) (Reply, error) {
	switch choice {
	case "1":
		buses, err := m.Bookings.OperatorBuses(ctx, sess.Operator.ID)
		if err != nil {
			return Reply{}, err
		}
		if len(buses) == 0 {
			return End("No buses today."), nil
		}
		lines := operatorBusLines(buses, func(b models.Bus) string {
			return fmt.Sprintf("%s | %s | %d/%d", b.Route, utils.FormatOperatorTime(b.DepartureTime), b.AvailableSeats, b.TotalSeats)
		})
		return End(strings.TrimSpace("Today's buses:\n"+lines)), nil

	case "2":
		sess.State = session.AwaitVerifyCode{}
		return Con("Enter booking code to verify:\n0. Back"), nil

	case "3":
		sess.State = session.AwaitBoardCode{}
		return Con("Enter booking code to mark boarded:\n0. Back"), nil

	case "4":
		buses, err := m.Bookings.OperatorBuses(ctx, sess.Operator.ID)
		if err != nil {
			return Reply{}, err
		}
		if len(buses) == 0 {
			return End("No buses today."), nil
		}
		lines := operatorBusLines(buses, func(b models.Bus) string {
			return fmt.Sprintf("%s: %d left", b.Route, b.AvailableSeats)
		})
		return End(strings.TrimSpace("Seats left today:\n"+lines)), nil

	case "5":
		buses, err := m.Bookings.OperatorBuses(ctx, sess.Operator.ID)
		if err != nil {
			return Reply{}, err
		}
		if len(buses) == 0 {
			return Con("No buses today.\n0. Back"), nil
		}
		sess.State = session.AwaitWalkInBus{Buses: snapshot(buses)}
		lines := operatorBusLines(buses, func(b models.Bus) string {
			return fmt.Sprintf("%s | %s | left %d", b.Route, utils.FormatOperatorTime(b.DepartureTime), b.AvailableSeats)
		})
		return Con("Choose bus for walk-in:\n" + lines + "0. Back"), nil
	}
	return operatorMenu(), nil
}

func (m *OperatorMenu) verify(ctx context.Context, code string) (Reply, error) {
	d, err := m.Bookings.Lookup(ctx, code)
	if errors.Is(err, domain.ErrBookingNotFound) {
		return End("Booking not found."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Endf("Code %s\n%s @ %s\nSeat %d\nStatus %s",
		d.Code, d.Route, utils.FormatOperatorTime(d.DepartureTime), d.SeatNumber, strings.ToUpper(string(d.Status))), nil
}

func (m *OperatorMenu) board(ctx context.Context, code string) Reply {
	_, err := m.Bookings.MarkBoarded(ctx, code)
	switch {
	case err == nil:
		return End("Marked as boarded.")
	case errors.Is(err, domain.ErrBookingNotFound):
		return End("Booking not found.")
	case errors.Is(err, domain.ErrNotConfirmed):
		return End("Not confirmed yet.")
	case errors.Is(err, domain.ErrAlreadyBoarded):
		return End("Already marked boarded.")
	default:
		m.fail(ctx, "", "board", err)
		return End("Error marking boarded.")
	}
}

func (m *OperatorMenu) walkIn(ctx context.Context, sess *session.Session, st session.AwaitWalkInBus, in Input) Reply {
	idx, _ := in.LastInt()
	bus, ok := st.Pick(idx)
	if !ok {
		return End("Invalid selection.")
	}
	booking, err := m.Bookings.WalkIn(ctx, bus.ID)
	switch {
	case err == nil:
		return Endf("Walk-in added. Seat %d. Code %s", booking.SeatNumber, booking.Code)
	case errors.Is(err, domain.ErrNoSeats):
		return End("No seats left.")
	default:
		m.fail(ctx, sess.Key, "walk_in", err)
		return End("Error adding walk-in.")
	}
}

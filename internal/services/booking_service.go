package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
	"busussd/internal/repositories"
	"busussd/internal/utils"

	"go.uber.org/zap"
)

const (
	customerCodeLen  = 6
	walkInCodePrefix = "WALK"
	walkInCodeLen    = 4
	maxCodeAttempts  = 5

	// OperatorWindow bounds the operator's "today's buses" list.
	OperatorWindow = 7 * 24 * time.Hour
)

// BookingService owns every seat-changing transaction.
type BookingService struct {
	Store   repositories.Store
	Log     *zap.Logger
	NewCode func(prefix string, n int) (string, error)
	Now     func() time.Time
}

func NewBookingService(store repositories.Store, log *zap.Logger) *BookingService {
	return &BookingService{Store: store, Log: log}
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *BookingService) code(prefix string, n int) (string, error) {
	if s.NewCode != nil {
		return s.NewCode(prefix, n)
	}
	return utils.NewBookingCode(prefix, n)
}

// EnsureCustomer returns the user id for a caller's phone, creating the user
// on first contact. Callers without a phone number book anonymously (id 0).
func (s *BookingService) EnsureCustomer(ctx context.Context, phone string) (int64, error) {
	if strings.TrimSpace(phone) == "" {
		return 0, nil
	}
	return s.Store.EnsureUser(ctx, phone)
}

// AvailableBuses lists buses with free seats, earliest departure first.
func (s *BookingService) AvailableBuses(ctx context.Context) ([]models.Bus, error) {
	return s.Store.ListAvailableBuses(ctx)
}

// OperatorBuses lists an operator's departures from now through OperatorWindow.
func (s *BookingService) OperatorBuses(ctx context.Context, operatorID int64) ([]models.Bus, error) {
	from := s.now()
	return s.Store.ListOperatorBuses(ctx, operatorID, from, from.Add(OperatorWindow))
}

func (s *BookingService) Lookup(ctx context.Context, code string) (models.BookingDetail, error) {
	return s.Store.FindBookingByCode(ctx, code)
}

// insertWithFreshCode inserts b under a newly generated code, regenerating
// when the store reports a collision with an existing code.
func (s *BookingService) insertWithFreshCode(ctx context.Context, tx repositories.Tx, b models.Booking, prefix string, n int) (models.Booking, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.code(prefix, n)
		if err != nil {
			return b, domain.InternalError{Msg: "generate booking code", Err: err}
		}
		b.Code = code
		id, err := tx.InsertBooking(ctx, b)
		if errors.Is(err, domain.ErrDuplicateCode) {
			utils.LogEvent(ctx, s.Log, "booking", "code_collision", "regenerating booking code", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return b, err
		}
		b.ID = id
		return b, nil
	}
	return b, domain.ConflictError{Resource: "booking", Msg: "could not allocate a unique code", Err: domain.ErrDuplicateCode}
}

// BookSeat reserves one explicit seat for a customer as a pending booking.
// The bus row is re-read under lock; nothing cached in the session is trusted.
func (s *BookingService) BookSeat(ctx context.Context, userID, busID int64, seat int) (models.Booking, error) {
	var out models.Booking
	err := s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		bus, err := tx.LockBus(ctx, busID)
		if domain.IsNotFound(err) {
			return domain.ValidationError{Field: "seat_number", Msg: "bus no longer exists", Err: domain.ErrSeatOutOfRange}
		}
		if err != nil {
			return err
		}
		if seat < 1 || seat > bus.TotalSeats {
			return domain.ValidationError{Field: "seat_number", Msg: fmt.Sprintf("must be within 1-%d", bus.TotalSeats), Err: domain.ErrSeatOutOfRange}
		}

		taken, err := tx.SeatTaken(ctx, busID, seat)
		if err != nil {
			return err
		}
		if taken {
			return domain.ConflictError{Resource: "seat", Msg: "already booked", Err: domain.ErrSeatTaken}
		}
		if bus.AvailableSeats <= 0 {
			return domain.ConflictError{Resource: "seat", Msg: "bus is full", Err: domain.ErrNoSeats}
		}

		out, err = s.insertWithFreshCode(ctx, tx, models.Booking{
			UserID:     userID,
			BusID:      busID,
			SeatNumber: seat,
			Status:     models.StatusPending,
		}, "", customerCodeLen)
		if err != nil {
			return err
		}
		return tx.AdjustAvailable(ctx, busID, -1)
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(ctx, s.Log, "booking", "book_seat", "seat reserved",
		zap.Int64("bus_id", busID), zap.Int("seat", seat), zap.String("code", out.Code))
	return out, nil
}

// WalkIn sells the next seat after the highest seat number ever issued on the
// bus and confirms it immediately.
func (s *BookingService) WalkIn(ctx context.Context, busID int64) (models.Booking, error) {
	var out models.Booking
	err := s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		bus, err := tx.LockBus(ctx, busID)
		if domain.IsNotFound(err) {
			return domain.ConflictError{Resource: "seat", Msg: "bus no longer exists", Err: domain.ErrNoSeats}
		}
		if err != nil {
			return err
		}
		if bus.AvailableSeats <= 0 {
			return domain.ConflictError{Resource: "seat", Msg: "bus is full", Err: domain.ErrNoSeats}
		}

		maxSeat, err := tx.MaxSeat(ctx, busID)
		if err != nil {
			return err
		}
		next := maxSeat + 1
		if next > bus.TotalSeats {
			return domain.ConflictError{Resource: "seat", Msg: "seat numbers exhausted", Err: domain.ErrNoSeats}
		}

		out, err = s.insertWithFreshCode(ctx, tx, models.Booking{
			BusID:      busID,
			SeatNumber: next,
			Status:     models.StatusConfirmed,
		}, walkInCodePrefix, walkInCodeLen)
		if err != nil {
			return err
		}
		return tx.AdjustAvailable(ctx, busID, -1)
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(ctx, s.Log, "booking", "walk_in", "walk-in sold",
		zap.Int64("bus_id", busID), zap.Int("seat", out.SeatNumber), zap.String("code", out.Code))
	return out, nil
}

// Cancel flips a booking to cancelled and gives its seat back to the bus.
func (s *BookingService) Cancel(ctx context.Context, code string) (models.Booking, error) {
	var out models.Booking
	err := s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		b, err := tx.LockBookingByCode(ctx, code)
		if err != nil {
			return err
		}
		if b.Status == models.StatusCancelled {
			return domain.ConflictError{Resource: "booking", Msg: "already cancelled", Err: domain.ErrAlreadyCancelled}
		}
		if err := tx.SetBookingStatus(ctx, b.ID, models.StatusCancelled); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, b.BusID, 1); err != nil {
			return err
		}
		b.Status = models.StatusCancelled
		out = b
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(ctx, s.Log, "booking", "cancel", "booking cancelled", zap.String("code", out.Code))
	return out, nil
}

// Pay records a completed payment and confirms a pending booking in one unit.
// The payment gateway is a stub; every attempt succeeds.
func (s *BookingService) Pay(ctx context.Context, bookingID int64, method string) (models.Transaction, error) {
	var out models.Transaction
	err := s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusPending {
			return domain.ConflictError{Resource: "booking", Msg: "not pending", Err: domain.ErrNotPending}
		}
		bus, err := tx.LockBus(ctx, b.BusID)
		if err != nil {
			return err
		}
		out = models.Transaction{
			BookingID:     b.ID,
			Amount:        bus.Price,
			PaymentMethod: method,
			Status:        models.TransactionCompleted,
		}
		if out.ID, err = tx.InsertTransaction(ctx, out); err != nil {
			return err
		}
		return tx.SetBookingStatus(ctx, b.ID, models.StatusConfirmed)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	utils.LogEvent(ctx, s.Log, "payment", "pay", "payment recorded",
		zap.Int64("booking_id", bookingID), zap.String("method", method))
	return out, nil
}

// MarkBoarded sets the boarded flag on a confirmed booking that is not yet boarded.
func (s *BookingService) MarkBoarded(ctx context.Context, code string) (models.Booking, error) {
	var out models.Booking
	err := s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		b, err := tx.LockBookingByCode(ctx, code)
		if err != nil {
			return err
		}
		if b.Status != models.StatusConfirmed {
			return domain.ConflictError{Resource: "booking", Msg: "not confirmed", Err: domain.ErrNotConfirmed}
		}
		if b.Boarded {
			return domain.ConflictError{Resource: "booking", Msg: "already boarded", Err: domain.ErrAlreadyBoarded}
		}
		if err := tx.SetBoarded(ctx, b.ID); err != nil {
			return err
		}
		b.Boarded = true
		out = b
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(ctx, s.Log, "booking", "board", "passenger boarded", zap.String("code", out.Code))
	return out, nil
}

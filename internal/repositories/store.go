package repositories

import (
	"context"
	"time"

	"busussd/internal/domain/models"
)

// Tx is the unit of work that seat commits, cancels, payments and boarding
// marks run inside. Rows read through the Lock* methods stay locked until the
// unit commits or rolls back, which serialises concurrent commits per bus.
type Tx interface {
	LockBus(ctx context.Context, busID int64) (models.Bus, error)
	SeatTaken(ctx context.Context, busID int64, seat int) (bool, error)
	MaxSeat(ctx context.Context, busID int64) (int, error)
	InsertBooking(ctx context.Context, b models.Booking) (int64, error)
	AdjustAvailable(ctx context.Context, busID int64, delta int) error

	LockBooking(ctx context.Context, id int64) (models.Booking, error)
	LockBookingByCode(ctx context.Context, code string) (models.Booking, error)
	SetBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
	SetBoarded(ctx context.Context, id int64) error
	InsertTransaction(ctx context.Context, t models.Transaction) (int64, error)
}

// Store is the data access layer consumed by the services. MySQLStore and
// MemoryStore are interchangeable behind it.
type Store interface {
	// WithTx runs fn as one atomic unit. Any error returned by fn rolls back
	// every write fn made; a nil error commits.
	WithTx(ctx context.Context, fn func(Tx) error) error

	EnsureUser(ctx context.Context, phone string) (int64, error)
	ListAvailableBuses(ctx context.Context) ([]models.Bus, error)
	ListOperatorBuses(ctx context.Context, operatorID int64, from, to time.Time) ([]models.Bus, error)
	GetBus(ctx context.Context, id int64) (models.Bus, error)
	FindBookingByCode(ctx context.Context, code string) (models.BookingDetail, error)
	ListBusBookings(ctx context.Context, busID int64) ([]models.BookingDetail, error)
	ListOperators(ctx context.Context) ([]models.Operator, error)

	CreateOperator(ctx context.Context, name, pinHash string) (models.Operator, error)
	CreateBus(ctx context.Context, nb models.NewBus) (models.Bus, error)

	Ping(ctx context.Context) error
}

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"busussd/internal/domain"
	"busussd/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRollsBackFailedUnit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bus := s.PutBus(models.Bus{Route: "Juba - Yei", DepartureTime: time.Now().Add(time.Hour), TotalSeats: 4, AvailableSeats: 4})

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertBooking(ctx, models.Booking{BusID: bus.ID, SeatNumber: 1, Code: "AAAAAA", Status: models.StatusPending}); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, bus.ID, -1); err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, models.Transaction{Amount: 10}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetBus(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableSeats)
	_, err = s.FindBookingByCode(ctx, "AAAAAA")
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, s.Transactions())
}

func TestMemoryStoreAdjustAvailableClamps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bus := s.PutBus(models.Bus{TotalSeats: 2, AvailableSeats: 2})

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.AdjustAvailable(ctx, bus.ID, 1) }))
	got, _ := s.GetBus(ctx, bus.ID)
	assert.Equal(t, 2, got.AvailableSeats)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.AdjustAvailable(ctx, bus.ID, -5) }))
	got, _ = s.GetBus(ctx, bus.ID)
	assert.Equal(t, 0, got.AvailableSeats)
}

func TestMemoryStoreDuplicateCode(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bus := s.PutBus(models.Bus{TotalSeats: 2, AvailableSeats: 2})

	err := s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertBooking(ctx, models.Booking{BusID: bus.ID, SeatNumber: 1, Code: "DUPE01"}); err != nil {
			return err
		}
		_, err := tx.InsertBooking(ctx, models.Booking{BusID: bus.ID, SeatNumber: 2, Code: "DUPE01"})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	assert.True(t, domain.IsConflict(err))
}

func TestMemoryStoreListsAndLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	op, err := s.CreateOperator(ctx, "Yei Line", "hash")
	require.NoError(t, err)

	now := time.Now()
	late, err := s.CreateBus(ctx, models.NewBus{Route: "Late", OperatorID: op.ID, DepartureTime: now.Add(2 * time.Hour), TotalSeats: 3})
	require.NoError(t, err)
	early, err := s.CreateBus(ctx, models.NewBus{Route: "Early", OperatorID: op.ID, DepartureTime: now.Add(time.Hour), TotalSeats: 3})
	require.NoError(t, err)
	s.PutBus(models.Bus{Route: "Full", OperatorID: op.ID, DepartureTime: now, TotalSeats: 3, AvailableSeats: 0})

	assert.Equal(t, 3, late.AvailableSeats)
	assert.Equal(t, "Yei Line", late.OperatorName)

	buses, err := s.ListAvailableBuses(ctx)
	require.NoError(t, err)
	require.Len(t, buses, 2)
	assert.Equal(t, early.ID, buses[0].ID)

	uid, err := s.EnsureUser(ctx, "+211933000000")
	require.NoError(t, err)
	again, err := s.EnsureUser(ctx, "+211933000000")
	require.NoError(t, err)
	assert.Equal(t, uid, again)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.InsertBooking(ctx, models.Booking{UserID: uid, BusID: early.ID, SeatNumber: 2, Code: "XY12ZZ", Status: models.StatusPending})
		return err
	}))
	d, err := s.FindBookingByCode(ctx, "xy12zz")
	require.NoError(t, err)
	assert.Equal(t, "Early", d.Route)
	assert.Equal(t, "+211933000000", d.PhoneNumber)

	list, err := s.ListBusBookings(ctx, early.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

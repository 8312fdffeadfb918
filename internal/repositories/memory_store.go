package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
)

// MemoryStore is an in-process Store. Units of work are serialised by a
// single mutex and undone from a journal when they fail, which gives the
// same guarantees the MySQL row locks give per bus.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	now func() time.Time

	nextID       int64
	users        map[string]models.User
	operators    []models.Operator
	buses        map[int64]models.Bus
	bookings     map[int64]models.Booking
	codes        map[string]int64
	transactions []models.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    map[string]models.User{},
		buses:    map[int64]models.Bus{},
		bookings: map[int64]models.Booking{},
		codes:    map[string]int64{},
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.InternalError{Msg: "begin transaction", Err: err}
	}
	tx := &memoryTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) EnsureUser(_ context.Context, phone string) (int64, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return 0, domain.ValidationError{Field: "phone_number", Msg: "empty phone number"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[phone]; ok {
		return u.ID, nil
	}
	u := models.User{ID: s.id(), PhoneNumber: phone}
	s.users[phone] = u
	return u.ID, nil
}

func (s *MemoryStore) operatorName(id int64) string {
	for _, op := range s.operators {
		if op.ID == id {
			return op.Name
		}
	}
	return ""
}

func (s *MemoryStore) filterBuses(keep func(models.Bus) bool) []models.Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Bus{}
	for _, b := range s.buses {
		if keep(b) {
			b.OperatorName = s.operatorName(b.OperatorID)
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return out
}

func (s *MemoryStore) ListAvailableBuses(_ context.Context) ([]models.Bus, error) {
	return s.filterBuses(func(b models.Bus) bool { return b.AvailableSeats > 0 }), nil
}

func (s *MemoryStore) ListOperatorBuses(_ context.Context, operatorID int64, from, to time.Time) ([]models.Bus, error) {
	return s.filterBuses(func(b models.Bus) bool {
		return b.OperatorID == operatorID && !b.DepartureTime.Before(from) && b.DepartureTime.Before(to)
	}), nil
}

func (s *MemoryStore) GetBus(_ context.Context, id int64) (models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buses[id]
	if !ok {
		return b, domain.NotFoundError{Resource: "bus", Err: domain.ErrBusNotFound}
	}
	b.OperatorName = s.operatorName(b.OperatorID)
	return b, nil
}

func (s *MemoryStore) detail(b models.Booking) models.BookingDetail {
	d := models.BookingDetail{Booking: b}
	if bus, ok := s.buses[b.BusID]; ok {
		d.Route = bus.Route
		d.DepartureTime = bus.DepartureTime
	}
	for _, u := range s.users {
		if u.ID == b.UserID {
			d.PhoneNumber = u.PhoneNumber
			break
		}
	}
	return d
}

func (s *MemoryStore) FindBookingByCode(_ context.Context, code string) (models.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[models.NormalizeCode(code)]
	if !ok {
		return models.BookingDetail{}, domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	return s.detail(s.bookings[id]), nil
}

func (s *MemoryStore) ListBusBookings(_ context.Context, busID int64) ([]models.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.BookingDetail{}
	for _, b := range s.bookings {
		if b.BusID == busID {
			out = append(out, s.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeatNumber == out[j].SeatNumber {
			return out[i].ID < out[j].ID
		}
		return out[i].SeatNumber < out[j].SeatNumber
	})
	return out, nil
}

func (s *MemoryStore) ListOperators(_ context.Context) ([]models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Operator(nil), s.operators...), nil
}

func (s *MemoryStore) CreateOperator(_ context.Context, name, pinHash string) (models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := models.Operator{ID: s.id(), Name: name, PINHash: pinHash}
	s.operators = append(s.operators, op)
	return op, nil
}

func (s *MemoryStore) CreateBus(ctx context.Context, nb models.NewBus) (models.Bus, error) {
	s.mu.Lock()
	b := models.Bus{
		ID:             s.id(),
		Route:          nb.Route,
		OperatorID:     nb.OperatorID,
		DepartureTime:  nb.DepartureTime,
		TotalSeats:     nb.TotalSeats,
		AvailableSeats: nb.TotalSeats,
		Price:          nb.Price,
	}
	s.buses[b.ID] = b
	s.mu.Unlock()
	return s.GetBus(ctx, b.ID)
}

// PutBus stores a bus row as-is. Seeding and tests only; production writes
// go through CreateBus and the transactions.
func (s *MemoryStore) PutBus(b models.Bus) models.Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	} else if b.ID > s.nextID {
		s.nextID = b.ID
	}
	s.buses[b.ID] = b
	return b
}

// Transactions returns a copy of the payment journal.
func (s *MemoryStore) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Transaction(nil), s.transactions...)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memoryTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) LockBus(_ context.Context, busID int64) (models.Bus, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.buses[busID]
	if !ok {
		return b, domain.NotFoundError{Resource: "bus", Err: domain.ErrBusNotFound}
	}
	return b, nil
}

func (t *memoryTx) SeatTaken(_ context.Context, busID int64, seat int) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, b := range t.s.bookings {
		if b.BusID == busID && b.SeatNumber == seat && b.Status != models.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) MaxSeat(_ context.Context, busID int64) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	maxSeat := 0
	for _, b := range t.s.bookings {
		if b.BusID == busID && b.SeatNumber > maxSeat {
			maxSeat = b.SeatNumber
		}
	}
	return maxSeat, nil
}

func (t *memoryTx) InsertBooking(_ context.Context, b models.Booking) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, dup := t.s.codes[b.Code]; dup {
		return 0, domain.ConflictError{Resource: "booking", Msg: "duplicate booking code", Err: domain.ErrDuplicateCode}
	}
	b.ID = t.s.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.s.now()
	}
	t.s.bookings[b.ID] = b
	t.s.codes[b.Code] = b.ID
	t.undo = append(t.undo, func() {
		delete(t.s.bookings, b.ID)
		delete(t.s.codes, b.Code)
	})
	return b.ID, nil
}

func (t *memoryTx) AdjustAvailable(_ context.Context, busID int64, delta int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.buses[busID]
	if !ok {
		return nil
	}
	prev := b
	b.AvailableSeats = min(max(b.AvailableSeats+delta, 0), b.TotalSeats)
	t.s.buses[busID] = b
	t.undo = append(t.undo, func() { t.s.buses[busID] = prev })
	return nil
}

func (t *memoryTx) LockBooking(_ context.Context, id int64) (models.Booking, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return b, domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	return b, nil
}

func (t *memoryTx) LockBookingByCode(ctx context.Context, code string) (models.Booking, error) {
	t.s.mu.RLock()
	id, ok := t.s.codes[models.NormalizeCode(code)]
	t.s.mu.RUnlock()
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	return t.LockBooking(ctx, id)
}

func (t *memoryTx) updateBooking(id int64, mutate func(*models.Booking)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	prev := b
	mutate(&b)
	t.s.bookings[id] = b
	t.undo = append(t.undo, func() { t.s.bookings[id] = prev })
	return nil
}

func (t *memoryTx) SetBookingStatus(_ context.Context, id int64, status models.BookingStatus) error {
	return t.updateBooking(id, func(b *models.Booking) { b.Status = status })
}

func (t *memoryTx) SetBoarded(_ context.Context, id int64) error {
	return t.updateBooking(id, func(b *models.Booking) { b.Boarded = true })
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr models.Transaction) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tr.ID = t.s.id()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.s.now()
	}
	n := len(t.s.transactions)
	t.s.transactions = append(t.s.transactions, tr)
	t.undo = append(t.undo, func() { t.s.transactions = t.s.transactions[:n] })
	return tr.ID, nil
}

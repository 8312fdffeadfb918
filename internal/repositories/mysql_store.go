package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"busussd/internal/domain"
	"busussd/internal/domain/models"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// MySQLStore implements Store on the relational schema created by
// db.EnsureSchema. Commits use SELECT ... FOR UPDATE row locks.
type MySQLStore struct {
	DB *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const busColumns = `b.id, b.route, b.operator_id, COALESCE(o.name, ''), b.departure_time, b.total_seats, b.available_seats, b.price`

const bookingDetailColumns = `bk.id, bk.user_id, bk.bus_id, bk.seat_number, bk.booking_code, bk.status, bk.boarded, bk.created_at,
	bu.route, bu.departure_time, COALESCE(u.phone_number, '')`

func scanBus(row rowScanner) (models.Bus, error) {
	var b models.Bus
	err := row.Scan(&b.ID, &b.Route, &b.OperatorID, &b.OperatorName, &b.DepartureTime, &b.TotalSeats, &b.AvailableSeats, &b.Price)
	return b, err
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b      models.Booking
		userID sql.NullInt64
		status string
	)
	if err := row.Scan(&b.ID, &userID, &b.BusID, &b.SeatNumber, &b.Code, &status, &b.Boarded, &b.CreatedAt); err != nil {
		return b, err
	}
	b.UserID = userID.Int64
	b.Status = models.BookingStatus(status)
	return b, nil
}

func scanBookingDetail(row rowScanner) (models.BookingDetail, error) {
	var (
		d      models.BookingDetail
		userID sql.NullInt64
		status string
	)
	err := row.Scan(&d.ID, &userID, &d.BusID, &d.SeatNumber, &d.Code, &status, &d.Boarded, &d.CreatedAt,
		&d.Route, &d.DepartureTime, &d.PhoneNumber)
	if err != nil {
		return d, err
	}
	d.UserID = userID.Int64
	d.Status = models.BookingStatus(status)
	return d, nil
}

func isDuplicateKey(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	return key == "" || strings.Contains(me.Message, key)
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func (s *MySQLStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.InternalError{Msg: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.InternalError{Msg: "commit transaction", Err: err}
	}
	return nil
}

// EnsureUser returns the id of the user with this phone, creating it on first sight.
func (s *MySQLStore) EnsureUser(ctx context.Context, phone string) (int64, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return 0, domain.ValidationError{Field: "phone_number", Msg: "empty phone number"}
	}
	var id int64
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE phone_number=? LIMIT 1`, phone).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO users (phone_number) VALUES (?)`, phone)
	if err != nil {
		// a concurrent request created it first
		if isDuplicateKey(err, "") {
			err = s.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE phone_number=? LIMIT 1`, phone).Scan(&id)
			return id, err
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *MySQLStore) queryBuses(ctx context.Context, query string, args ...any) ([]models.Bus, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Bus{}
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListAvailableBuses returns buses with at least one free seat, earliest departure first.
func (s *MySQLStore) ListAvailableBuses(ctx context.Context) ([]models.Bus, error) {
	return s.queryBuses(ctx, `
		SELECT `+busColumns+`
		FROM buses b LEFT JOIN operators o ON o.id = b.operator_id
		WHERE b.available_seats > 0
		ORDER BY b.departure_time ASC`)
}

// ListOperatorBuses returns an operator's buses departing in [from, to).
func (s *MySQLStore) ListOperatorBuses(ctx context.Context, operatorID int64, from, to time.Time) ([]models.Bus, error) {
	return s.queryBuses(ctx, `
		SELECT `+busColumns+`
		FROM buses b LEFT JOIN operators o ON o.id = b.operator_id
		WHERE b.operator_id=?
		  AND b.departure_time >= ?
		  AND b.departure_time < ?
		ORDER BY b.departure_time ASC`, operatorID, from, to)
}

func (s *MySQLStore) GetBus(ctx context.Context, id int64) (models.Bus, error) {
	b, err := scanBus(s.DB.QueryRowContext(ctx, `
		SELECT `+busColumns+`
		FROM buses b LEFT JOIN operators o ON o.id = b.operator_id
		WHERE b.id=? LIMIT 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.NotFoundError{Resource: "bus", Err: domain.ErrBusNotFound}
	}
	return b, err
}

func (s *MySQLStore) FindBookingByCode(ctx context.Context, code string) (models.BookingDetail, error) {
	d, err := scanBookingDetail(s.DB.QueryRowContext(ctx, `
		SELECT `+bookingDetailColumns+`
		FROM bookings bk
		JOIN buses bu ON bu.id = bk.bus_id
		LEFT JOIN users u ON u.id = bk.user_id
		WHERE bk.booking_code=? LIMIT 1`, models.NormalizeCode(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return d, domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	return d, err
}

// ListBusBookings returns every booking on a bus ordered by seat.
func (s *MySQLStore) ListBusBookings(ctx context.Context, busID int64) ([]models.BookingDetail, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+bookingDetailColumns+`
		FROM bookings bk
		JOIN buses bu ON bu.id = bk.bus_id
		LEFT JOIN users u ON u.id = bk.user_id
		WHERE bk.bus_id=?
		ORDER BY bk.seat_number ASC, bk.id ASC`, busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *MySQLStore) ListOperators(ctx context.Context) ([]models.Operator, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, ussd_pin_hash FROM operators ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Operator{}
	for rows.Next() {
		var op models.Operator
		if err := rows.Scan(&op.ID, &op.Name, &op.PINHash); err != nil {
			return out, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CreateOperator(ctx context.Context, name, pinHash string) (models.Operator, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT INTO operators (name, ussd_pin_hash) VALUES (?, ?)`, name, pinHash)
	if err != nil {
		return models.Operator{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Operator{}, err
	}
	return models.Operator{ID: id, Name: name, PINHash: pinHash}, nil
}

// CreateBus schedules a bus with every seat available.
func (s *MySQLStore) CreateBus(ctx context.Context, nb models.NewBus) (models.Bus, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO buses (route, operator_id, departure_time, total_seats, available_seats, price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nb.Route, nb.OperatorID, nb.DepartureTime, nb.TotalSeats, nb.TotalSeats, nb.Price)
	if err != nil {
		return models.Bus{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Bus{}, err
	}
	return s.GetBus(ctx, id)
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	var one int
	if err := s.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockBus(ctx context.Context, busID int64) (models.Bus, error) {
	var b models.Bus
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, route, operator_id, departure_time, total_seats, available_seats, price
		FROM buses WHERE id=? FOR UPDATE`, busID).
		Scan(&b.ID, &b.Route, &b.OperatorID, &b.DepartureTime, &b.TotalSeats, &b.AvailableSeats, &b.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.NotFoundError{Resource: "bus", Err: domain.ErrBusNotFound}
	}
	return b, err
}

func (t *mysqlTx) SeatTaken(ctx context.Context, busID int64, seat int) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `
		SELECT 1 FROM bookings
		WHERE bus_id=? AND seat_number=? AND status <> 'cancelled'
		LIMIT 1`, busID, seat).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *mysqlTx) MaxSeat(ctx context.Context, busID int64) (int, error) {
	var maxSeat sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(seat_number) FROM bookings WHERE bus_id=?`, busID).Scan(&maxSeat); err != nil {
		return 0, err
	}
	return int(maxSeat.Int64), nil
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b models.Booking) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings (user_id, bus_id, seat_number, booking_code, status)
		VALUES (?, ?, ?, ?, ?)`,
		nullableID(b.UserID), b.BusID, b.SeatNumber, b.Code, string(b.Status))
	if err != nil {
		if isDuplicateKey(err, "booking_code") {
			return 0, domain.ConflictError{Resource: "booking", Msg: "duplicate booking code", Err: domain.ErrDuplicateCode}
		}
		return 0, err
	}
	return res.LastInsertId()
}

// AdjustAvailable moves available_seats by delta, clamped to [0, total_seats].
func (t *mysqlTx) AdjustAvailable(ctx context.Context, busID int64, delta int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE buses
		SET available_seats = LEAST(GREATEST(available_seats + ?, 0), total_seats)
		WHERE id=?`, delta, busID)
	return err
}

func (t *mysqlTx) lockBookingWhere(ctx context.Context, where string, arg any) (models.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, bus_id, seat_number, booking_code, status, boarded, created_at
		FROM bookings WHERE `+where+` LIMIT 1 FOR UPDATE`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.NotFoundError{Resource: "booking", Err: domain.ErrBookingNotFound}
	}
	return b, err
}

func (t *mysqlTx) LockBooking(ctx context.Context, id int64) (models.Booking, error) {
	return t.lockBookingWhere(ctx, "id=?", id)
}

func (t *mysqlTx) LockBookingByCode(ctx context.Context, code string) (models.Booking, error) {
	return t.lockBookingWhere(ctx, "booking_code=?", models.NormalizeCode(code))
}

func (t *mysqlTx) SetBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status=? WHERE id=?`, string(status), id)
	return err
}

func (t *mysqlTx) SetBoarded(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE bookings SET boarded=1 WHERE id=?`, id)
	return err
}

func (t *mysqlTx) InsertTransaction(ctx context.Context, tr models.Transaction) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (booking_id, amount, payment_method, status)
		VALUES (?, ?, ?, ?)`,
		tr.BookingID, tr.Amount, tr.PaymentMethod, tr.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

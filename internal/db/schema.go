package db

import (
	"context"
	"database/sql"
	"fmt"
)

type tableDDL struct {
	name string
	ddl  string
}

// Order matters: foreign keys reference earlier tables.
var schema = []tableDDL{
	{"users", `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	phone_number VARCHAR(32) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_phone_number (phone_number)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"operators", `
CREATE TABLE IF NOT EXISTS operators (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	ussd_pin_hash VARCHAR(100) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"buses", `
CREATE TABLE IF NOT EXISTS buses (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	route VARCHAR(255) NOT NULL,
	operator_id BIGINT NOT NULL,
	departure_time DATETIME NOT NULL,
	total_seats INT NOT NULL,
	available_seats INT NOT NULL,
	price BIGINT NOT NULL DEFAULT 0,
	KEY idx_departure (departure_time),
	KEY idx_operator_departure (operator_id, departure_time),
	CONSTRAINT fk_buses_operator FOREIGN KEY (operator_id) REFERENCES operators(id),
	CONSTRAINT chk_available_seats CHECK (available_seats >= 0 AND available_seats <= total_seats)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	user_id BIGINT NULL,
	bus_id BIGINT NOT NULL,
	seat_number INT NOT NULL,
	booking_code VARCHAR(16) NOT NULL,
	status ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
	boarded TINYINT(1) NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_booking_code (booking_code),
	KEY idx_bus_seat (bus_id, seat_number),
	CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
	CONSTRAINT fk_bookings_bus FOREIGN KEY (bus_id) REFERENCES buses(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"transactions", `
CREATE TABLE IF NOT EXISTS transactions (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	amount BIGINT NOT NULL,
	payment_method VARCHAR(32) NOT NULL,
	status VARCHAR(32) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	KEY idx_booking (booking_id),
	CONSTRAINT fk_transactions_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// EnsureSchema creates any missing table. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	created := []string{}
	for _, t := range schema {
		if HasTable(ctx, db, t.name) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return created, fmt.Errorf("create table %s: %w", t.name, err)
		}
		created = append(created, t.name)
	}
	return created, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64)  NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(32)  NOT NULL,
		first_name    VARCHAR(100) NOT NULL,
		last_name     VARCHAR(100) NOT NULL,
		email         VARCHAR(255) NOT NULL DEFAULT '',
		phone         VARCHAR(32)  NOT NULL DEFAULT '',
		address       VARCHAR(255) NOT NULL DEFAULT '',
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name             VARCHAR(200) NOT NULL,
		code             VARCHAR(64)  NOT NULL,
		synopsis         TEXT         NOT NULL,
		trailer          VARCHAR(500) NOT NULL DEFAULT '',
		duration_hours   TINYINT UNSIGNED NOT NULL,
		duration_minutes TINYINT UNSIGNED NOT NULL,
		image            VARCHAR(255) NULL,
		created_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_movies_name (name),
		UNIQUE KEY uq_movies_code (code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		seat_rows  INT UNSIGNED NOT NULL,
		seat_cols  INT UNSIGNED NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_rooms_name (name),
		CONSTRAINT chk_rooms_grid CHECK (seat_rows >= 1 AND seat_cols >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showtimes (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		movie_id    BIGINT UNSIGNED NOT NULL,
		room_id     BIGINT UNSIGNED NOT NULL,
		price_cents BIGINT UNSIGNED NOT NULL,
		starts_at   DATETIME NOT NULL,
		ends_at     DATETIME NOT NULL,
		total_seats INT UNSIGNED NOT NULL,
		sold_seats  INT UNSIGNED NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_showtimes_room_window (room_id, starts_at, ends_at),
		KEY idx_showtimes_movie_start (movie_id, starts_at),
		CONSTRAINT fk_showtimes_movie FOREIGN KEY (movie_id) REFERENCES movies (id),
		CONSTRAINT fk_showtimes_room FOREIGN KEY (room_id) REFERENCES rooms (id),
		CONSTRAINT chk_showtimes_window CHECK (starts_at < ends_at),
		CONSTRAINT chk_showtimes_sold CHECK (sold_seats <= total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		customer_name VARCHAR(200) NOT NULL,
		tax_id        VARCHAR(32)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		total_cents   BIGINT UNSIGNED NOT NULL,
		showtime_id   BIGINT UNSIGNED NOT NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_invoices_showtime (showtime_id, created_at),
		CONSTRAINT fk_invoices_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		showtime_id BIGINT UNSIGNED NOT NULL,
		invoice_id  BIGINT UNSIGNED NOT NULL,
		seat_row    INT UNSIGNED NOT NULL,
		seat_col    INT UNSIGNED NOT NULL,
		UNIQUE KEY uq_seats_position (showtime_id, seat_row, seat_col),
		KEY idx_seats_invoice (invoice_id),
		CONSTRAINT fk_seats_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id),
		CONSTRAINT fk_seats_invoice FOREIGN KEY (invoice_id) REFERENCES invoices (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

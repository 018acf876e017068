// Package repository contains data access logic for showtimes.  A
// showtime carries its own seat counters (total_seats, sold_seats); the
// only way sold_seats grows is ReserveCapacityTx, a single conditional
// UPDATE that can never push it past total_seats.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-management/internal/model"
)

const showtimeColumns = `s.id, s.movie_id, s.room_id, s.price_cents, s.starts_at, s.ends_at, s.total_seats, s.sold_seats, s.created_at`

func scanShowtime(row interface{ Scan(...any) error }, s *model.Showtime, extra ...any) error {
	dest := []any{&s.ID, &s.MovieID, &s.RoomID, &s.PriceCents, &s.StartsAt, &s.EndsAt, &s.TotalSeats, &s.SoldSeats, &s.CreatedAt}
	return row.Scan(append(dest, extra...)...)
}

// ShowtimeRepo manages persistence for showtimes.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo with the given DB handle.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo {
	return &ShowtimeRepo{db: db}
}

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning several repositories.
func (r *ShowtimeRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a showtime with sold_seats = 0 and assigns the generated ID.
func (r *ShowtimeRepo) Create(ctx context.Context, s *model.Showtime) error {
	const q = `INSERT INTO showtimes (movie_id, room_id, price_cents, starts_at, ends_at, total_seats, sold_seats) VALUES (?, ?, ?, ?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.RoomID, s.PriceCents, s.StartsAt.UTC(), s.EndsAt.UTC(), s.TotalSeats)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.SoldSeats = 0
	return nil
}

// GetByID retrieves a showtime.  It returns ErrShowtimeNotFound if there
// is no matching row.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	var s model.Showtime
	if err := scanShowtime(r.db.QueryRowContext(ctx, `SELECT `+showtimeColumns+` FROM showtimes s WHERE s.id = ?`, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindOverlapping returns the showtimes of a room whose [starts_at, ends_at]
// window shares any instant with [start, end].  Windows are closed on both
// sides: an existing showtime ending exactly at start is an overlap.
func (r *ShowtimeRepo) FindOverlapping(ctx context.Context, roomID uint64, start, end time.Time) ([]model.Showtime, error) {
	const q = `SELECT ` + showtimeColumns + `
               FROM showtimes s
               WHERE s.room_id = ? AND s.starts_at <= ? AND s.ends_at >= ?
               ORDER BY s.starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q, roomID, end.UTC(), start.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overlaps []model.Showtime
	for rows.Next() {
		var s model.Showtime
		if err := scanShowtime(rows, &s); err != nil {
			return nil, err
		}
		overlaps = append(overlaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// ShowtimeGrid is a showtime joined with the room grid and movie name it
// needs for seat validation and receipts.
type ShowtimeGrid struct {
	Showtime  model.Showtime
	Room      model.Room
	MovieName string
}

const gridQuery = `SELECT ` + showtimeColumns + `, r.id, r.name, r.seat_rows, r.seat_cols, r.created_at, m.name
                   FROM showtimes s
                   JOIN rooms r  ON r.id = s.room_id
                   JOIN movies m ON m.id = s.movie_id
                   WHERE s.id = ?`

func getGrid(ctx context.Context, q querier, query string, id uint64) (*ShowtimeGrid, error) {
	var g ShowtimeGrid
	err := scanShowtime(q.QueryRowContext(ctx, query, id), &g.Showtime,
		&g.Room.ID, &g.Room.Name, &g.Room.Rows, &g.Room.Columns, &g.Room.CreatedAt, &g.MovieName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	return &g, nil
}

// GetGrid loads a showtime with its room and movie name.
func (r *ShowtimeRepo) GetGrid(ctx context.Context, id uint64) (*ShowtimeGrid, error) {
	return getGrid(ctx, r.db, gridQuery, id)
}

// GetGridTx is GetGrid inside the caller's transaction.  It locks the
// showtime row until the transaction ends, before any child row is
// inserted.
func (r *ShowtimeRepo) GetGridTx(ctx context.Context, tx *sql.Tx, id uint64) (*ShowtimeGrid, error) {
	return getGrid(ctx, tx, gridQuery+` FOR UPDATE OF s`, id)
}

// ReserveCapacityTx adds n to sold_seats if and only if the result stays
// within total_seats.  It reports false when the showtime does not have n
// free seats left.  The UPDATE takes the row lock, so concurrent callers
// on the same showtime are serialized until the transaction ends.
func (r *ShowtimeRepo) ReserveCapacityTx(ctx context.Context, tx *sql.Tx, id uint64, n int) (bool, error) {
	const q = `UPDATE showtimes SET sold_seats = sold_seats + ? WHERE id = ? AND sold_seats + ? <= total_seats`
	res, err := tx.ExecContext(ctx, q, n, id, n)
	if err != nil {
		return false, fmt.Errorf("reserve capacity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Delete removes a showtime, its invoices and its seats.
func (r *ShowtimeRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM showtimes WHERE id = ? FOR UPDATE`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrShowtimeNotFound
			}
			return err
		}
		return deleteShowtimesWhere(ctx, tx, "id = ?", id)
	})
}

// ShowtimeQuery filters the showtimes of one movie.  When Within is set
// only upcoming showtimes with free seats starting in the next Within are
// returned.  When Day is set only showtimes touching [Day, Day+24h) are
// returned.  RoomSearch filters on the room name.
type ShowtimeQuery struct {
	MovieID    uint64
	Now        time.Time
	Within     time.Duration
	Day        *time.Time
	RoomSearch string
	Page       Page
}

// ShowtimeRow is a showtime with the name of its room.
type ShowtimeRow struct {
	model.Showtime
	RoomName string `json:"room_name"`
}

// Search lists the showtimes of a movie ordered by start time.
func (r *ShowtimeRepo) Search(ctx context.Context, q ShowtimeQuery) ([]ShowtimeRow, int64, error) {
	where := []string{"s.movie_id = ?"}
	args := []any{q.MovieID}
	switch {
	case q.Within > 0:
		where = append(where, "s.starts_at >= ?", "s.starts_at <= ?", "s.sold_seats < s.total_seats")
		args = append(args, q.Now.UTC(), q.Now.Add(q.Within).UTC())
	case q.Day != nil:
		dayStart := q.Day.UTC()
		dayEnd := dayStart.Add(24 * time.Hour)
		where = append(where, "s.starts_at < ?", "s.ends_at >= ?")
		args = append(args, dayEnd, dayStart)
	}
	if s := strings.TrimSpace(q.RoomSearch); s != "" {
		where = append(where, "LOWER(r.name) LIKE ?")
		args = append(args, likePattern(s))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*) FROM showtimes s JOIN rooms r ON r.id = s.room_id WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + showtimeColumns + `, r.name
		FROM showtimes s
		JOIN rooms r ON r.id = s.room_id
		WHERE ` + cond + `
		ORDER BY s.starts_at ASC, s.id ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(append([]any{}, args...), q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]ShowtimeRow, 0, q.Page.Size)
	for rows.Next() {
		var row ShowtimeRow
		if err := scanShowtime(rows, &row.Showtime, &row.RoomName); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

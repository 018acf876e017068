package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-management/internal/model"
)

var roomUniqueFields = map[string]string{"uq_rooms_name": "name"}

// RoomRepo handles CRUD operations for rooms.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create inserts a new room and fills in the generated ID.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (name, seat_rows, seat_cols) VALUES (?, ?, ?)`,
		room.Name, room.Rows, room.Columns)
	if err != nil {
		return asDuplicate(err, roomUniqueFields)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*room = *created
	return nil
}

// GetByID fetches a room.  It returns ErrRoomNotFound when no row matches.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	var room model.Room
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, seat_rows, seat_cols, created_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.Rows, &room.Columns, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// Update renames or resizes a room.  A room with showtimes can be
// renamed but not resized (ErrRoomInUse).
func (r *RoomRepo) Update(ctx context.Context, room *model.Room) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var rows, cols int
		err := tx.QueryRowContext(ctx, `SELECT seat_rows, seat_cols FROM rooms WHERE id = ? FOR UPDATE`, room.ID).Scan(&rows, &cols)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoomNotFound
			}
			return err
		}
		if rows != room.Rows || cols != room.Columns {
			var scheduled bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM showtimes WHERE room_id = ?)`, room.ID).Scan(&scheduled); err != nil {
				return err
			}
			if scheduled {
				return fmt.Errorf("resize room %d: %w", room.ID, ErrRoomInUse)
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET name = ?, seat_rows = ?, seat_cols = ? WHERE id = ?`,
			room.Name, room.Rows, room.Columns, room.ID)
		return asDuplicate(err, roomUniqueFields)
	})
}

// RoomQuery filters room listings.
type RoomQuery struct {
	Search string
	Page   Page
}

// List returns rooms whose name contains q.Search, newest first.
func (r *RoomRepo) List(ctx context.Context, q RoomQuery) ([]model.Room, int64, error) {
	cond := "1=1"
	var args []any
	if s := strings.TrimSpace(q.Search); s != "" {
		cond = "LOWER(name) LIKE ?"
		args = append(args, likePattern(s))
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, seat_rows, seat_cols, created_at FROM rooms WHERE `+cond+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Room, 0, q.Page.Size)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Rows, &room.Columns, &room.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// RoomOption is the id/name pair used by room pickers.
type RoomOption struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// ListOptions returns every room as an id/name pair sorted by name.
func (r *RoomRepo) ListOptions(ctx context.Context) ([]RoomOption, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM rooms ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RoomOption
	for rows.Next() {
		var o RoomOption
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete removes a room and cascades to its showtimes, their invoices and
// seats inside a single transaction.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ? FOR UPDATE`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoomNotFound
			}
			return err
		}
		if err := deleteShowtimesWhere(ctx, tx, "room_id = ?", id); err != nil {
			return fmt.Errorf("cascade showtimes of room %d: %w", id, err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		return err
	})
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/cinema-management/internal/model"
)

var seatUniqueFields = map[string]string{"uq_seats_position": "seats"}

// SeatRepo provides CRUD-style operations on sold seats.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo using the given database handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBatchTx inserts one seat per coordinate inside the caller's
// transaction.  A coordinate already sold for the showtime violates
// uq_seats_position and is reported as *DuplicateError; the caller must
// roll back since earlier rows of the batch may already be inserted.
func (r *SeatRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, showtimeID, invoiceID uint64, coords []model.SeatCoord) ([]model.Seat, error) {
	const q = `INSERT INTO seats (showtime_id, invoice_id, seat_row, seat_col) VALUES (?, ?, ?, ?)`
	seats := make([]model.Seat, 0, len(coords))
	for _, c := range coords {
		res, err := tx.ExecContext(ctx, q, showtimeID, invoiceID, c.Row, c.Column)
		if err != nil {
			return nil, asDuplicate(err, seatUniqueFields)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		seats = append(seats, model.Seat{
			ID:         uint64(id),
			ShowtimeID: showtimeID,
			InvoiceID:  invoiceID,
			Row:        c.Row,
			Column:     c.Column,
		})
	}
	return seats, nil
}

// TakenTx returns the coordinates among coords that are already sold for
// the showtime, read inside the caller's transaction.
func (r *SeatRepo) TakenTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, coords []model.SeatCoord) ([]model.SeatCoord, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	pairs := strings.TrimSuffix(strings.Repeat("(?, ?),", len(coords)), ",")
	args := make([]any, 0, 1+2*len(coords))
	args = append(args, showtimeID)
	for _, c := range coords {
		args = append(args, c.Row, c.Column)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_row, seat_col FROM seats WHERE showtime_id = ? AND (seat_row, seat_col) IN (`+pairs+`) ORDER BY seat_row, seat_col`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []model.SeatCoord
	for rows.Next() {
		var c model.SeatCoord
		if err := rows.Scan(&c.Row, &c.Column); err != nil {
			return nil, err
		}
		taken = append(taken, c)
	}
	return taken, rows.Err()
}

// ListByShowtime returns every sold seat of a showtime ordered by position.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, showtime_id, invoice_id, seat_row, seat_col FROM seats WHERE showtime_id = ? ORDER BY seat_row, seat_col`,
		showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := []model.Seat{}
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.InvoiceID, &s.Row, &s.Column); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ListByInvoices returns the seats of the given invoices keyed by invoice id.
func (r *SeatRepo) ListByInvoices(ctx context.Context, invoiceIDs []uint64) (map[uint64][]model.Seat, error) {
	out := make(map[uint64][]model.Seat, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(invoiceIDs)), ",")
	args := make([]any, len(invoiceIDs))
	for i, id := range invoiceIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, showtime_id, invoice_id, seat_row, seat_col FROM seats WHERE invoice_id IN (`+placeholders+`) ORDER BY invoice_id, seat_row, seat_col`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.InvoiceID, &s.Row, &s.Column); err != nil {
			return nil, err
		}
		out[s.InvoiceID] = append(out[s.InvoiceID], s)
	}
	return out, rows.Err()
}

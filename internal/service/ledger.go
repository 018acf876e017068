package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
)

// Ledger keeps the seat inventory of showtimes: the sold counter on the
// showtime row and one seat row per sold coordinate.
type Ledger struct {
	showtimes *repository.ShowtimeRepo
	seats     *repository.SeatRepo
}

// NewLedger returns a Ledger backed by the given repositories.
func NewLedger(showtimes *repository.ShowtimeRepo, seats *repository.SeatRepo) *Ledger {
	return &Ledger{showtimes: showtimes, seats: seats}
}

// CheckSeats validates a batch of coordinates against a room grid without
// touching the store.  Empty batches and repeated coordinates are invalid
// input; any coordinate outside the grid rejects the whole batch with
// ErrOutOfBounds.
func CheckSeats(room model.Room, coords []model.SeatCoord) error {
	if len(coords) == 0 {
		return FieldErrors{}.add("seats", "at least one seat is required")
	}
	seen := make(map[model.SeatCoord]bool, len(coords))
	for _, c := range coords {
		if seen[c] {
			return FieldErrors{}.add("seats", fmt.Sprintf("seat (%d, %d) requested twice", c.Row, c.Column))
		}
		seen[c] = true
	}
	for _, c := range coords {
		if !room.Contains(c) {
			return fmt.Errorf("%w: (%d, %d) in a %dx%d room", ErrOutOfBounds, c.Row, c.Column, room.Rows, room.Columns)
		}
	}
	return nil
}

// checkGrid validates coords against the grid of a loaded showtime.  A
// room whose size no longer matches the showtime's seat total cannot
// place any seat.
func checkGrid(grid *repository.ShowtimeGrid, coords []model.SeatCoord) error {
	if grid.Room.Capacity() != grid.Showtime.TotalSeats {
		return fmt.Errorf("%w: room %d is %dx%d but showtime %d has %d seats", ErrOutOfBounds,
			grid.Room.ID, grid.Room.Rows, grid.Room.Columns, grid.Showtime.ID, grid.Showtime.TotalSeats)
	}
	return CheckSeats(grid.Room, coords)
}

// Reserve sells coords of the showtime described by grid to invoiceID,
// inside tx.  The caller must hold the showtime row lock (GetGridTx).
// It is all-or-nothing and checks, in order: coordinates already sold
// (ErrSeatTaken), then the sold counter, raised with a single conditional
// UPDATE that fails when fewer than len(coords) seats are left
// (ErrSoldOut).  The seat rows are inserted under a unique (showtime,
// row, column) index as well.  On any error the caller must roll tx back,
// which also undoes the counter increment.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, grid *repository.ShowtimeGrid, invoiceID uint64, coords []model.SeatCoord) ([]model.Seat, error) {
	if err := checkGrid(grid, coords); err != nil {
		return nil, err
	}
	id := grid.Showtime.ID
	taken, err := l.seats.TakenTx(ctx, tx, id, coords)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: showtime %d row %d column %d", ErrSeatTaken, id, taken[0].Row, taken[0].Column)
	}
	ok, err := l.showtimes.ReserveCapacityTx(ctx, tx, id, len(coords))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: showtime %d", ErrSoldOut, id)
	}
	seats, err := l.seats.CreateBatchTx(ctx, tx, id, invoiceID, coords)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: showtime %d", ErrSeatTaken, id)
		}
		return nil, err
	}
	return seats, nil
}

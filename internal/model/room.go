package model

import "time"

// Room is a screening room with a rectangular seat grid.  Seats are
// addressed by zero-based (row, column) pairs inside [0,Rows) x [0,Columns).
type Room struct {
	ID        uint64    `json:"id"`      // rooms.id
	Name      string    `json:"name"`    // rooms.name (unique)
	Rows      int       `json:"rows"`    // rooms.seat_rows
	Columns   int       `json:"columns"` // rooms.seat_cols
	CreatedAt time.Time `json:"created_at"`
}

// Capacity is the number of seats in the grid.
func (r Room) Capacity() int {
	return r.Rows * r.Columns
}

// Contains reports whether the coordinate lies inside the grid.
func (r Room) Contains(c SeatCoord) bool {
	return c.Row >= 0 && c.Row < r.Rows && c.Column >= 0 && c.Column < r.Columns
}

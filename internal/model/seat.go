package model

import "fmt"

// SeatCoord addresses one position of a room grid.  Rows and columns are
// zero-based.
type SeatCoord struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Label renders the coordinate the way customers see it, one-based.
func (c SeatCoord) Label() string {
	return fmt.Sprintf("Row %d Seat %d", c.Row+1, c.Column+1)
}

// Seat is one sold position of a showtime, tied to the invoice that
// bought it.  (ShowtimeID, Row, Column) is unique.
type Seat struct {
	ID         uint64 `json:"id"`          // seats.id
	ShowtimeID uint64 `json:"showtime_id"` // seats.showtime_id
	InvoiceID  uint64 `json:"invoice_id"`  // seats.invoice_id
	Row        int    `json:"row"`         // seats.seat_row
	Column     int    `json:"column"`      // seats.seat_col
}

// Coord returns the grid coordinate of the seat.
func (s Seat) Coord() SeatCoord {
	return SeatCoord{Row: s.Row, Column: s.Column}
}

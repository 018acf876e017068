package model

import "time"

// Showtime represents a scheduled screening of a movie in a room.
// TotalSeats is copied from the room grid when the showtime is created
// and never changes afterwards; SoldSeats only grows through purchases.
//
// Fields:
//  ID         – primary key identifier.
//  MovieID    – movie being screened.
//  RoomID     – room where the screening takes place.
//  PriceCents – unit seat price in cents.
//  StartsAt   – when the screening begins (UTC).
//  EndsAt     – StartsAt plus the movie duration (UTC).
//  TotalSeats – rows x columns of the room at creation time.
//  SoldSeats  – number of seats sold so far.
//  CreatedAt  – creation timestamp.
type Showtime struct {
	ID         uint64    `json:"id"`          // showtimes.id
	MovieID    uint64    `json:"movie_id"`    // showtimes.movie_id
	RoomID     uint64    `json:"room_id"`     // showtimes.room_id
	PriceCents int64     `json:"price_cents"` // showtimes.price_cents
	StartsAt   time.Time `json:"starts_at"`   // showtimes.starts_at
	EndsAt     time.Time `json:"ends_at"`     // showtimes.ends_at
	TotalSeats int       `json:"total_seats"` // showtimes.total_seats
	SoldSeats  int       `json:"sold_seats"`  // showtimes.sold_seats
	CreatedAt  time.Time `json:"created_at"`  // showtimes.created_at
}

// Available returns the number of unsold seats.
func (s Showtime) Available() int {
	if s.SoldSeats >= s.TotalSeats {
		return 0
	}
	return s.TotalSeats - s.SoldSeats
}

// Overlaps reports whether the showtime's window shares any instant with
// [start, end].  Both windows are treated as closed intervals, so a
// showtime ending exactly when another starts counts as an overlap.
func (s Showtime) Overlaps(start, end time.Time) bool {
	return Overlaps(s.StartsAt, s.EndsAt, start, end)
}

// Overlaps is the closed-interval overlap test: [a1,a2] and [b1,b2]
// overlap iff a1 <= b2 and b1 <= a2.
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return !a1.After(b2) && !b1.After(a2)
}

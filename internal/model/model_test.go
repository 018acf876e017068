package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlapsClosedInterval(t *testing.T) {
	base := time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	cases := []struct {
		name           string
		a1, a2, b1, b2 time.Time
		want           bool
	}{
		{"identical", at(0, 0), at(2, 0), at(0, 0), at(2, 0), true},
		{"b inside a", at(0, 0), at(3, 0), at(1, 0), at(2, 0), true},
		{"partial tail", at(0, 0), at(2, 0), at(1, 30), at(3, 30), true},
		{"touching end to start", at(0, 0), at(2, 0), at(2, 0), at(4, 0), true},
		{"disjoint after", at(0, 0), at(2, 0), at(2, 1), at(4, 0), false},
		{"disjoint before", at(3, 0), at(5, 0), at(0, 0), at(2, 59), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a1, tc.a2, tc.b1, tc.b2))
			assert.Equal(t, tc.want, Overlaps(tc.b1, tc.b2, tc.a1, tc.a2), "overlap must be symmetric")
		})
	}
}

func TestRoomContains(t *testing.T) {
	r := Room{Rows: 5, Columns: 4}
	assert.Equal(t, 20, r.Capacity())
	assert.True(t, r.Contains(SeatCoord{Row: 0, Column: 0}))
	assert.True(t, r.Contains(SeatCoord{Row: 4, Column: 3}))
	assert.False(t, r.Contains(SeatCoord{Row: 5, Column: 0}))
	assert.False(t, r.Contains(SeatCoord{Row: 0, Column: 4}))
	assert.False(t, r.Contains(SeatCoord{Row: -1, Column: 0}))
}

func TestMovieDurationAndMoney(t *testing.T) {
	m := Movie{DurationHours: 2, DurationMinutes: 15}
	assert.Equal(t, 135*time.Minute, m.Duration())

	assert.Equal(t, "12.50", FormatCents(1250))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-3.00", FormatCents(-300))

	st := Showtime{TotalSeats: 25, SoldSeats: 2}
	assert.Equal(t, 23, st.Available())
	assert.Equal(t, "Row 1 Seat 2", SeatCoord{Row: 0, Column: 1}.Label())
}

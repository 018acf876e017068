package model

import "time"

// Movie represents a film in the catalogue as stored in the `movies`
// table.  A movie owns its showtimes through showtimes.movie_id; the
// Showtimes field is only filled by read paths that need it.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – unique display name.
//  Code            – unique catalogue code.
//  Synopsis        – free text description.
//  Trailer         – trailer URL or reference.
//  DurationHours   – whole hours of running time (1–4).
//  DurationMinutes – remaining minutes of running time (0–59).
//  Image           – poster file name in the asset store, nil until uploaded.
//  CreatedAt       – creation timestamp.
type Movie struct {
	ID              uint64     `json:"id"`               // movies.id
	Name            string     `json:"name"`             // movies.name
	Code            string     `json:"code"`             // movies.code
	Synopsis        string     `json:"synopsis"`         // movies.synopsis
	Trailer         string     `json:"trailer"`          // movies.trailer
	DurationHours   int        `json:"duration_hours"`   // movies.duration_hours
	DurationMinutes int        `json:"duration_minutes"` // movies.duration_minutes
	Image           *string    `json:"image,omitempty"`  // movies.image
	CreatedAt       time.Time  `json:"created_at"`       // movies.created_at
	Showtimes       []Showtime `json:"showtimes,omitempty"`
}

// Duration returns the running time of the movie.
func (m Movie) Duration() time.Duration {
	return time.Duration(m.DurationHours)*time.Hour + time.Duration(m.DurationMinutes)*time.Minute
}

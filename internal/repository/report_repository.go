package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// MovieReport aggregates the showtimes of one movie.  Revenue and seat
// figures only cover showtimes that already ended.
type MovieReport struct {
	MovieID           uint64 `json:"movie_id"`
	Name              string `json:"name"`
	Code              string `json:"code"`
	UpcomingShowtimes int64  `json:"upcoming_showtimes"`
	PastShowtimes     int64  `json:"past_showtimes"`
	ExpectedCents     int64  `json:"expected_cents"`
	CollectedCents    int64  `json:"collected_cents"`
	TotalSeats        int64  `json:"total_seats"`
	SoldSeats         int64  `json:"sold_seats"`
}

// ReportRepo runs read-only aggregate queries.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo returns a new ReportRepo.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// ReportQuery selects which movies to report on.
type ReportQuery struct {
	Search string
	Now    time.Time
	Page   Page
}

// MovieRevenue returns one MovieReport per movie, newest movie first.
func (r *ReportRepo) MovieRevenue(ctx context.Context, q ReportQuery) ([]MovieReport, int64, error) {
	cond := "1=1"
	var args []any
	if s := strings.TrimSpace(q.Search); s != "" {
		cond = "LOWER(m.name) LIKE ?"
		args = append(args, likePattern(s))
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies m WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	now := q.Now.UTC()
	dataSQL := `SELECT m.id, m.name, m.code,
			COALESCE(SUM(CASE WHEN s.starts_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN s.ends_at < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN s.ends_at < ? THEN s.total_seats * s.price_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN s.ends_at < ? THEN s.sold_seats * s.price_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN s.ends_at < ? THEN s.total_seats ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN s.ends_at < ? THEN s.sold_seats ELSE 0 END), 0)
		FROM movies m
		LEFT JOIN showtimes s ON s.movie_id = m.id
		WHERE ` + cond + `
		GROUP BY m.id, m.name, m.code, m.created_at
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ? OFFSET ?`
	dataArgs := []any{now, now, now, now, now, now}
	dataArgs = append(dataArgs, args...)
	dataArgs = append(dataArgs, q.Page.Size, q.Page.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]MovieReport, 0, q.Page.Size)
	for rows.Next() {
		var m MovieReport
		if err := rows.Scan(&m.MovieID, &m.Name, &m.Code, &m.UpcomingShowtimes, &m.PastShowtimes,
			&m.ExpectedCents, &m.CollectedCents, &m.TotalSeats, &m.SoldSeats); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

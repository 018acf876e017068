package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-management/internal/model"
)

var movieUniqueFields = map[string]string{
	"uq_movies_name": "name",
	"uq_movies_code": "code",
}

const movieColumns = `m.id, m.name, m.code, m.synopsis, m.trailer, m.duration_hours, m.duration_minutes, m.image, m.created_at`

// MovieRepo manages persistence for movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

func scanMovie(row interface{ Scan(...any) error }, m *model.Movie) error {
	var image sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &m.Code, &m.Synopsis, &m.Trailer,
		&m.DurationHours, &m.DurationMinutes, &image, &m.CreatedAt); err != nil {
		return err
	}
	m.Image = nil
	if image.Valid {
		s := image.String
		m.Image = &s
	}
	return nil
}

// Create inserts a movie.  Name and code uniqueness is enforced by the
// store and reported as *DuplicateError.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (name, code, synopsis, trailer, duration_hours, duration_minutes) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Name, m.Code, m.Synopsis, m.Trailer, m.DurationHours, m.DurationMinutes)
	if err != nil {
		return asDuplicate(err, movieUniqueFields)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*m = *created
	return nil
}

// GetByID retrieves a movie by its ID.  It returns ErrMovieNotFound if
// there is no matching row.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	q := `SELECT ` + movieColumns + ` FROM movies m WHERE m.id = ?`
	var m model.Movie
	if err := scanMovie(r.db.QueryRowContext(ctx, q, id), &m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Update overwrites the editable fields of a movie.  The poster image is
// managed separately through SetImage.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie) error {
	const q = `UPDATE movies SET name = ?, code = ?, synopsis = ?, trailer = ?, duration_hours = ?, duration_minutes = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, m.Name, m.Code, m.Synopsis, m.Trailer, m.DurationHours, m.DurationMinutes, m.ID)
	if err != nil {
		return asDuplicate(err, movieUniqueFields)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when nothing changed, so tell the
		// two cases apart.
		if _, err := r.GetByID(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// SetImage records the poster file name and returns the previous one.
func (r *MovieRepo) SetImage(ctx context.Context, id uint64, filename string) (previous *string, err error) {
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		var old sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT image FROM movies WHERE id = ? FOR UPDATE`, id).Scan(&old); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMovieNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE movies SET image = ? WHERE id = ?`, filename, id); err != nil {
			return err
		}
		if old.Valid {
			s := old.String
			previous = &s
		}
		return nil
	})
	return previous, err
}

// MovieQuery filters movie listings.
type MovieQuery struct {
	Search string
	Page   Page
}

// List returns movies whose name contains q.Search, newest first, plus
// the total number of matches.
func (r *MovieRepo) List(ctx context.Context, q MovieQuery) ([]model.Movie, int64, error) {
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
	dataSQL := `SELECT ` + movieColumns + ` FROM movies m WHERE ` + cond + ` ORDER BY m.created_at DESC, m.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0, q.Page.Size)
	for rows.Next() {
		var m model.Movie
		if err := scanMovie(rows, &m); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListBillboard returns the movies that have at least one showtime, newest
// first.  Only upcoming showtimes count when upcomingOnly is set.
func (r *MovieRepo) ListBillboard(ctx context.Context, q MovieQuery, upcomingOnly bool) ([]model.Movie, int64, error) {
	exists := "EXISTS (SELECT 1 FROM showtimes s WHERE s.movie_id = m.id)"
	if upcomingOnly {
		exists = "EXISTS (SELECT 1 FROM showtimes s WHERE s.movie_id = m.id AND s.starts_at >= UTC_TIMESTAMP())"
	}
	where := []string{exists}
	var args []any
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "LOWER(m.name) LIKE ?")
		args = append(args, likePattern(s))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies m WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies m WHERE `+cond+` ORDER BY m.created_at DESC, m.id DESC LIMIT ? OFFSET ?`,
		append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0, q.Page.Size)
	for rows.Next() {
		var m model.Movie
		if err := scanMovie(rows, &m); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Delete removes a movie together with its showtimes and everything sold
// for them, in one transaction.  It returns the poster file name (if any)
// so the caller can remove the asset once the rows are gone.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) (image *string, err error) {
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		var img sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT image FROM movies WHERE id = ? FOR UPDATE`, id).Scan(&img); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMovieNotFound
			}
			return err
		}
		if err := deleteShowtimesWhere(ctx, tx, "movie_id = ?", id); err != nil {
			return fmt.Errorf("cascade showtimes of movie %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id); err != nil {
			return err
		}
		if img.Valid {
			s := img.String
			image = &s
		}
		return nil
	})
	return image, err
}

// deleteShowtimesWhere removes the showtimes matching cond together with
// their seats and invoices.  Seats go first because they reference both.
func deleteShowtimesWhere(ctx context.Context, tx *sql.Tx, cond string, args ...any) error {
	sub := `SELECT id FROM showtimes WHERE ` + cond
	if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE showtime_id IN (`+sub+`)`, args...); err != nil {
		return fmt.Errorf("delete seats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE showtime_id IN (`+sub+`)`, args...); err != nil {
		return fmt.Errorf("delete invoices: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM showtimes WHERE `+cond, args...); err != nil {
		return fmt.Errorf("delete showtimes: %w", err)
	}
	return nil
}

// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// looking at driver errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a referenced row does not exist.
// Entity specific errors wrap it so errors.Is(err, ErrNotFound) holds.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller may not act on a resource.
var ErrForbidden = errors.New("forbidden")

// ErrRoomInUse is returned when resizing a room that has showtimes.
var ErrRoomInUse = errors.New("room has showtimes")

// ErrDuplicate is the sentinel behind DuplicateError.
var ErrDuplicate = errors.New("duplicate key")

var (
	ErrMovieNotFound    = fmt.Errorf("movie %w", ErrNotFound)
	ErrRoomNotFound     = fmt.Errorf("room %w", ErrNotFound)
	ErrShowtimeNotFound = fmt.Errorf("showtime %w", ErrNotFound)
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
)

// DuplicateError reports a unique index violation.  Field names the
// request field the index covers (e.g. "name", "code", "username").
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// duplicateKey returns the name of the violated unique index when err is
// a MySQL duplicate entry error.  The message has the form
// "Duplicate entry 'x' for key 'table.uq_name'" (older servers omit the
// table prefix).
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	msg := me.Message
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return "", true
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key, true
}

// asDuplicate converts a duplicate entry error into a *DuplicateError
// using fields to map index names to request fields.  Other errors are
// returned unchanged.
func asDuplicate(err error, fields map[string]string) error {
	key, ok := duplicateKey(err)
	if !ok {
		return err
	}
	field, known := fields[key]
	if !known {
		field = key
	}
	return &DuplicateError{Field: field}
}

// querier is the subset of *sql.DB and *sql.Tx used by the repositories,
// so the same query code can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Page holds pagination parameters shared by list queries.
type Page struct {
	Number int // 1-based
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// likePattern escapes LIKE wildcards in s and wraps it for a contains search.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// withTx runs fn inside a transaction, rolling back unless fn succeeds
// and the commit goes through.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

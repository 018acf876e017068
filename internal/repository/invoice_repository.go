package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/iliyamo/cinema-management/internal/model"
)

// InvoiceRepo provides persistence for invoices.  Seats are stored by
// SeatRepo and attached by the caller.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

// CreateTx inserts an invoice inside the caller's transaction and fills
// in its ID.  The invoice only becomes visible once the transaction that
// also reserves its seats commits.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	const q = `INSERT INTO invoices (customer_name, tax_id, email, total_cents, showtime_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, inv.CustomerName, inv.TaxID, inv.Email, inv.TotalCents, inv.ShowtimeID, inv.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// GetByID fetches an invoice without its seats.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.QueryRowContext(ctx,
		`SELECT id, customer_name, tax_id, email, total_cents, showtime_id, created_at FROM invoices WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.CustomerName, &inv.TaxID, &inv.Email, &inv.TotalCents, &inv.ShowtimeID, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// InvoiceQuery filters the invoices of a showtime.  A Search made only of
// digits matches the tax id exactly; anything else matches customer names
// containing it.
type InvoiceQuery struct {
	ShowtimeID uint64
	Search     string
	Page       Page
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// ListByShowtime returns the invoices of a showtime, oldest first.
func (r *InvoiceRepo) ListByShowtime(ctx context.Context, q InvoiceQuery) ([]model.Invoice, int64, error) {
	cond := "showtime_id = ?"
	args := []any{q.ShowtimeID}
	if s := strings.TrimSpace(q.Search); s != "" {
		if isDigits(s) {
			cond += " AND tax_id = ?"
			args = append(args, s)
		} else {
			cond += " AND LOWER(customer_name) LIKE ?"
			args = append(args, likePattern(s))
		}
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_name, tax_id, email, total_cents, showtime_id, created_at FROM invoices WHERE `+cond+` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Invoice, 0, q.Page.Size)
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.CustomerName, &inv.TaxID, &inv.Email, &inv.TotalCents, &inv.ShowtimeID, &inv.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/utils"
)

var userUniqueFields = map[string]string{"uq_users_username": "username"}

const userColumns = `id, username, password_hash, role, first_name, last_name, email, phone, address, created_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName,
		&u.Email, &u.Phone, &u.Address, &u.CreatedAt)
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes password with the given bcrypt cost and inserts the user.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Username = strings.TrimSpace(u.Username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, first_name, last_name, email, phone, address) VALUES (?,?,?,?,?,?,?,?)",
		u.Username, hash, u.Role, u.FirstName, u.LastName, u.Email, u.Phone, u.Address)
	if err != nil {
		return asDuplicate(err, userUniqueFields)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	return nil
}

// GetByUsername fetches a user by login name.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", strings.TrimSpace(username)), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// UserQuery filters user listings.  ExcludeRole hides every user holding
// that role (Managers never see Administrators).
type UserQuery struct {
	Search      string
	ExcludeRole string
	Page        Page
}

// List returns users matching q ordered by username.
func (r *UserRepo) List(ctx context.Context, q UserQuery) ([]model.User, int64, error) {
	where := []string{"1=1"}
	var args []any
	if q.ExcludeRole != "" {
		where = append(where, "role <> ?")
		args = append(args, q.ExcludeRole)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)")
		p := likePattern(s)
		args = append(args, p, p, p)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+" ORDER BY username ASC LIMIT ? OFFSET ?",
		append(args, q.Page.Size, q.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.User, 0, q.Page.Size)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the profile fields and role of a user.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username = ?, role = ?, first_name = ?, last_name = ?, email = ?, phone = ?, address = ? WHERE id = ?",
		u.Username, u.Role, u.FirstName, u.LastName, u.Email, u.Phone, u.Address, u.ID)
	if err != nil {
		return asDuplicate(err, userUniqueFields)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePassword replaces the password hash of a user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

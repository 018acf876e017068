package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/utils"
)

// UserStore is the part of the user repository Accounts relies on.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, u *model.User, password string, cost int) error
}

// Accounts verifies staff credentials and issues access tokens.
type Accounts struct {
	users  UserStore
	secret string
	ttl    time.Duration
	cost   int
}

// NewAccounts returns an Accounts issuing tokens signed with secret that
// expire after ttl.  cost is the bcrypt cost used for new passwords.
func NewAccounts(users UserStore, secret string, ttl time.Duration, cost int) *Accounts {
	return &Accounts{users: users, secret: secret, ttl: ttl, cost: cost}
}

// VerifyCredentials returns the user owning username if password matches.
// An unknown username yields repository.ErrUserNotFound and a wrong
// password ErrBadCredentials.
func (a *Accounts) VerifyCredentials(ctx context.Context, username, password string) (*model.User, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Login verifies the credentials and issues a signed token carrying the
// user's id, username and role.
func (a *Accounts) Login(ctx context.Context, username, password string) (*model.User, utils.AccessToken, error) {
	u, err := a.VerifyCredentials(ctx, username, password)
	if err != nil {
		return nil, utils.AccessToken{}, err
	}
	tok, err := utils.NewAccessToken(a.secret, utils.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, a.ttl)
	if err != nil {
		return nil, utils.AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return u, tok, nil
}

// SeedAdmin creates the initial "admin" Administrator when the users
// table is empty.  It is a no-op otherwise.
func (a *Accounts) SeedAdmin(ctx context.Context, password string) error {
	n, err := a.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	admin := &model.User{
		Username:  "admin",
		Role:      model.RoleAdministrator,
		FirstName: "Admin",
		LastName:  "Admin",
	}
	if err := a.users.Create(ctx, admin, password, a.cost); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logrus.WithField("user_id", admin.ID).Warn("seeded initial admin account, change its password")
	return nil
}

// CanManage reports whether actor may see or modify target.  Managers
// never see Administrators; the rest is allowed.
func CanManage(actorRole, targetRole string) bool {
	return !(actorRole == model.RoleManager && targetRole == model.RoleAdministrator)
}

// ensure the repository satisfies UserStore
var _ UserStore = (*repository.UserRepo)(nil)

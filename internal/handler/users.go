package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/middleware"
	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
)

// UserHandler manages staff accounts.  Managers can neither see nor touch
// Administrators.
type UserHandler struct {
	Users      *repository.UserRepo
	BcryptCost int
}

func NewUserHandler(users *repository.UserRepo, bcryptCost int) *UserHandler {
	return &UserHandler{Users: users, BcryptCost: bcryptCost}
}

type userReq struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Role      string `json:"role" validate:"required,oneof=Administrator Manager"`
	FirstName string `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string `json:"last_name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Address   string `json:"address" validate:"omitempty,max=255"`
}

type createUserReq struct {
	userReq
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (r userReq) apply(u *model.User) {
	u.Username = strings.TrimSpace(r.Username)
	u.Role = r.Role
	u.FirstName = strings.TrimSpace(r.FirstName)
	u.LastName = strings.TrimSpace(r.LastName)
	u.Email = strings.TrimSpace(r.Email)
	u.Phone = strings.TrimSpace(r.Phone)
	u.Address = strings.TrimSpace(r.Address)
}

// visible loads a user the caller is allowed to manage.  Users outside
// the caller's reach are reported as not found.
func (h *UserHandler) visible(c echo.Context, id uint64) (*model.User, error) {
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !service.CanManage(middleware.Role(c), u.Role) {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

// List returns users ordered by username, ?search matching names.
func (h *UserHandler) List(c echo.Context) error {
	q := repository.UserQuery{Search: c.QueryParam("search"), Page: pageFrom(c, 10)}
	if middleware.Role(c) == model.RoleManager {
		q.ExcludeRole = model.RoleAdministrator
	}
	users, total, err := h.Users.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newPage(users, total, q.Page))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	u, err := h.visible(c, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	if !service.CanManage(middleware.Role(c), req.Role) {
		return respondError(c, repository.ErrForbidden)
	}
	var u model.User
	req.apply(&u)
	if err := h.Users.Create(c.Request().Context(), &u, req.Password, h.BcryptCost); err != nil {
		return respondError(c, err)
	}
	created, err := h.Users.GetByID(c.Request().Context(), u.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req userReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	u, err := h.visible(c, id)
	if err != nil {
		return respondError(c, err)
	}
	if !service.CanManage(middleware.Role(c), req.Role) {
		return respondError(c, repository.ErrForbidden)
	}
	req.apply(u)
	if err := h.Users.Update(c.Request().Context(), u); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if self, _ := middleware.UserID(c); self == id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot delete your own account"})
	}
	if _, err := h.visible(c, id); err != nil {
		return respondError(c, err)
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/middleware"
	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
	"github.com/iliyamo/cinema-management/internal/utils"
)

// AuthHandler serves login and the current user's profile.
type AuthHandler struct {
	Accounts   *service.Accounts
	Users      *repository.UserRepo
	BcryptCost int
}

func NewAuthHandler(accounts *service.Accounts, users *repository.UserRepo, bcryptCost int) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Users: users, BcryptCost: bcryptCost}
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type loginResp struct {
	User   *model.User `json:"user"`
	Access tokenPart   `json:"access"`
}

// Login verifies username and password and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, tok, err := h.Accounts.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid credentials",
			"fields": []service.FieldError{{Field: "username", Message: "unknown user"}}})
	case errors.Is(err, service.ErrBadCredentials):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid credentials",
			"fields": []service.FieldError{{Field: "password", Message: "wrong password"}}})
	case err != nil:
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{User: u, Access: tokenPart{Token: tok.Token, Expires: tok.Exp}})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

type changePasswordReq struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=6,max=72"`
}

// ChangePassword replaces the caller's own password after checking the
// current one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Current) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid credentials",
			"fields": []service.FieldError{{Field: "current_password", Message: "wrong password"}}})
	}
	if err := h.Users.UpdatePassword(ctx, uid, req.New, h.BcryptCost); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

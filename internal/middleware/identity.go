package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// UserID returns the authenticated user's id, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// Username returns the authenticated user's name, or "".
func Username(c echo.Context) string {
	name, _ := c.Get(ctxUsername).(string)
	return name
}

// subject identifies the caller for rate limiting: the user id when
// authenticated, "anon" otherwise.
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

// Package router wires handlers and middleware to the /v1 API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/handler"
	"github.com/iliyamo/cinema-management/internal/middleware"
	"github.com/iliyamo/cinema-management/internal/model"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Movies    *handler.MovieHandler
	Rooms     *handler.RoomHandler
	Showtimes *handler.ShowtimeHandler
	Purchases *handler.PurchaseHandler
	Reports   *handler.ReportHandler
}

// Edge holds the optional Redis-backed middleware.  Both may be
// pass-through when Redis is unavailable.
type Edge struct {
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

func (e Edge) cache() echo.MiddlewareFunc     { return orPassThrough(e.Cache) }
func (e Edge) rateLimit() echo.MiddlewareFunc { return orPassThrough(e.RateLimit) }

func orPassThrough(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers login and the current user's endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, edge Edge, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login, edge.rateLimit())

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret))
	me.GET("", a.Me)
	me.PATCH("/password", a.ChangePassword)
}

// RegisterPublic registers the endpoints customers use without an
// account: catalogue, billboard, seat maps and purchases.
func RegisterPublic(e *echo.Echo, h Handlers, edge Edge) {
	e.GET("/v1/movies", h.Movies.List)
	e.GET("/v1/movies/:id", h.Movies.Get)
	e.GET("/v1/movies/:id/image", h.Movies.Image)

	e.GET("/v1/billboard", h.Showtimes.Billboard, edge.cache())
	e.GET("/v1/billboard/:movieId", h.Showtimes.BillboardMovie, edge.cache())
	e.GET("/v1/showtimes/:id", h.Showtimes.Get)

	e.POST("/v1/purchases", h.Purchases.Create, edge.rateLimit())
}

// RegisterStaff registers the back-office endpoints.  Every route needs a
// valid token of an Administrator or a Manager.
func RegisterStaff(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdministrator, model.RoleManager),
	)

	// ---- Users ----
	g.GET("/users", h.Users.List)
	g.POST("/users", h.Users.Create)
	g.GET("/users/:id", h.Users.Get)
	g.PATCH("/users/:id", h.Users.Update)
	g.DELETE("/users/:id", h.Users.Delete)

	// ---- Movies ----
	g.POST("/movies", h.Movies.Create)
	g.PATCH("/movies/:id", h.Movies.Update)
	g.DELETE("/movies/:id", h.Movies.Delete)
	g.POST("/movies/:id/image", h.Movies.UploadImage)

	// ---- Rooms ----
	g.GET("/rooms", h.Rooms.List)
	g.POST("/rooms", h.Rooms.Create)
	g.GET("/rooms/:id", h.Rooms.Get)
	g.PATCH("/rooms/:id", h.Rooms.Update)
	g.DELETE("/rooms/:id", h.Rooms.Delete)

	// ---- Showtimes ----
	g.POST("/showtimes", h.Showtimes.Schedule)
	g.DELETE("/showtimes/:id", h.Showtimes.Delete)
	g.GET("/showtimes/:id/invoices", h.Purchases.ListInvoices)

	// ---- Reports ----
	g.GET("/reports/movies", h.Reports.Movies)
}

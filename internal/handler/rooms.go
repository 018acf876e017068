package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
)

// RoomHandler serves the room registry.
type RoomHandler struct {
	Rooms *repository.RoomRepo
}

func NewRoomHandler(rooms *repository.RoomRepo) *RoomHandler {
	return &RoomHandler{Rooms: rooms}
}

type roomReq struct {
	Name    string `json:"name" validate:"required,min=3,max=100"`
	Rows    int    `json:"rows" validate:"min=1,max=100"`
	Columns int    `json:"columns" validate:"min=1,max=100"`
}

// List returns rooms ordered by name.  With ?combo=true it returns only
// id and name of every room, for selection lists.
func (h *RoomHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	if combo, _ := strconv.ParseBool(c.QueryParam("combo")); combo {
		opts, err := h.Rooms.ListOptions(ctx)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, opts)
	}
	q := repository.RoomQuery{Search: c.QueryParam("search"), Page: pageFrom(c, 10)}
	rooms, total, err := h.Rooms.List(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newPage(rooms, total, q.Page))
}

func (h *RoomHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	room, err := h.Rooms.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	room := model.Room{Name: strings.TrimSpace(req.Name), Rows: req.Rows, Columns: req.Columns}
	if err := h.Rooms.Create(c.Request().Context(), &room); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// Update renames or resizes a room.  Rooms with showtimes can only be
// renamed.
func (h *RoomHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req roomReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	room := model.Room{ID: id, Name: strings.TrimSpace(req.Name), Rows: req.Rows, Columns: req.Columns}
	if err := h.Rooms.Update(c.Request().Context(), &room); err != nil {
		return respondError(c, err)
	}
	updated, err := h.Rooms.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete removes a room with its showtimes, invoices and seats.
func (h *RoomHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Rooms.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

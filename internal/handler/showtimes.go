package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
)

// searchDateLayout is the day format accepted by the billboard search.
const searchDateLayout = "02/01/2006"

// ShowtimeHandler schedules showtimes and serves the billboard.
type ShowtimeHandler struct {
	Scheduler *service.Scheduler
	Showtimes *repository.ShowtimeRepo
	Movies    *repository.MovieRepo
	Seats     *repository.SeatRepo
	Loc       *time.Location
	now       func() time.Time
}

func NewShowtimeHandler(scheduler *service.Scheduler, showtimes *repository.ShowtimeRepo, movies *repository.MovieRepo, seats *repository.SeatRepo, loc *time.Location) *ShowtimeHandler {
	if scheduler == nil || showtimes == nil || movies == nil || seats == nil {
		panic("nil dependency passed to NewShowtimeHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ShowtimeHandler{Scheduler: scheduler, Showtimes: showtimes, Movies: movies, Seats: seats, Loc: loc, now: time.Now}
}

type scheduleReq struct {
	MovieID   uint64   `json:"movie_id"`
	Price     float64  `json:"price"`
	StartDate string   `json:"start_date" validate:"required"`
	EndDate   string   `json:"end_date" validate:"required"`
	Time      string   `json:"time" validate:"required"`
	RoomIDs   []uint64 `json:"rooms"`
}

// scheduleFailure reports the pairs handled before a batch stopped.
type scheduleFailure struct {
	Error string `json:"error"`
	*service.ScheduleResult
}

// Schedule creates one showtime per day of the range and room, reporting
// the slots that collide with existing showtimes.
func (h *ShowtimeHandler) Schedule(c echo.Context) error {
	var req scheduleReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Scheduler.ScheduleShowtimes(c.Request().Context(), service.ScheduleRequest{
		MovieID:   req.MovieID,
		Price:     req.Price,
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
		Time:      strings.TrimSpace(req.Time),
		RoomIDs:   req.RoomIDs,
	})
	if err != nil && res == nil {
		return respondError(c, err)
	}
	if err != nil {
		// The batch stopped on a store failure; what it created stays.
		logrus.WithError(err).WithFields(logrus.Fields{
			"component": "http",
			"movie_id":  req.MovieID,
			"created":   len(res.Created),
		}).Error("scheduling stopped")
		return c.JSON(http.StatusInternalServerError, scheduleFailure{Error: "internal server error", ScheduleResult: res})
	}
	status := http.StatusOK
	if len(res.Created) > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// Delete removes a showtime with its invoices and seats.
func (h *ShowtimeHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Showtimes.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type showtimeDetail struct {
	Showtime  model.Showtime    `json:"showtime"`
	Room      model.Room        `json:"room"`
	MovieName string            `json:"movie_name"`
	Available int               `json:"available"`
	Sold      []model.SeatCoord `json:"sold"`
}

// Get returns a showtime with its room grid and the coordinates already
// sold, which is what a seat picker needs.
func (h *ShowtimeHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	grid, err := h.Showtimes.GetGrid(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	seats, err := h.Seats.ListByShowtime(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	sold := make([]model.SeatCoord, len(seats))
	for i, s := range seats {
		sold[i] = s.Coord()
	}
	return c.JSON(http.StatusOK, showtimeDetail{
		Showtime:  grid.Showtime,
		Room:      grid.Room,
		MovieName: grid.MovieName,
		Available: grid.Showtime.Available(),
		Sold:      sold,
	})
}

// Billboard lists movies that have showtimes, newest first.  With
// ?upcoming=true only movies with a showtime still to come are listed.
func (h *ShowtimeHandler) Billboard(c echo.Context) error {
	upcoming, _ := strconv.ParseBool(c.QueryParam("upcoming"))
	q := repository.MovieQuery{Search: c.QueryParam("search"), Page: pageFrom(c, 20)}
	movies, total, err := h.Movies.ListBillboard(c.Request().Context(), q, upcoming)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newPage(movies, total, q.Page))
}

// showtimeQuery builds the showtime search of a billboard entry:
//
//	?days=N             bookable showtimes until the end of the N-th day from today
//	?search=DD/MM/YYYY  showtimes touching that day
//	?search=text        showtimes in rooms whose name contains text
func (h *ShowtimeHandler) showtimeQuery(c echo.Context, movieID uint64) (repository.ShowtimeQuery, error) {
	now := h.now().In(h.Loc)
	q := repository.ShowtimeQuery{MovieID: movieID, Now: now, Page: pageFrom(c, 10)}
	if raw, ok := c.QueryParams()["days"]; ok {
		days, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil || days < 0 || days > 365 {
			return q, service.FieldErrors{{Field: "days", Message: "must be a number between 0 and 365"}}
		}
		endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Loc).AddDate(0, 0, 1)
		q.Within = endOfToday.AddDate(0, 0, days).Sub(now)
		q.Page = repository.Page{Number: 1, Size: maxPageSize}
		return q, nil
	}
	search := strings.TrimSpace(c.QueryParam("search"))
	if day, err := time.ParseInLocation(searchDateLayout, search, h.Loc); err == nil {
		q.Day = &day
		return q, nil
	}
	q.RoomSearch = search
	return q, nil
}

// BillboardMovie returns a movie with a page of its showtimes.
func (h *ShowtimeHandler) BillboardMovie(c echo.Context) error {
	id, err := parseID(c, "movieId")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	movie, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	q, err := h.showtimeQuery(c, id)
	if err != nil {
		return respondError(c, err)
	}
	rows, total, err := h.Showtimes.Search(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"movie":     movie,
		"showtimes": newPage(rows, total, q.Page),
	})
}

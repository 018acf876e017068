package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/storage"
)

// AssetStore keeps poster files.
type AssetStore interface {
	Store(owner string, data []byte, mime string) (string, error)
	Retrieve(name string) ([]byte, error)
	Delete(name string) error
}

// MovieHandler serves the movie catalogue and poster images.
type MovieHandler struct {
	Movies   *repository.MovieRepo
	Assets   AssetStore
	MaxBytes int64
}

func NewMovieHandler(movies *repository.MovieRepo, assets AssetStore, maxBytes int64) *MovieHandler {
	if movies == nil || assets == nil {
		panic("nil dependency passed to NewMovieHandler")
	}
	if maxBytes <= 0 {
		maxBytes = storage.MaxBytes
	}
	return &MovieHandler{Movies: movies, Assets: assets, MaxBytes: maxBytes}
}

type movieReq struct {
	Name            string `json:"name" validate:"required,min=2,max=150"`
	Code            string `json:"code" validate:"required,min=3,max=50"`
	Synopsis        string `json:"synopsis" validate:"required,min=3"`
	Trailer         string `json:"trailer" validate:"omitempty,url"`
	DurationHours   int    `json:"duration_hours" validate:"min=1,max=4"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=59"`
}

func (r movieReq) apply(m *model.Movie) {
	m.Name = strings.TrimSpace(r.Name)
	m.Code = strings.TrimSpace(r.Code)
	m.Synopsis = strings.TrimSpace(r.Synopsis)
	m.Trailer = strings.TrimSpace(r.Trailer)
	m.DurationHours = r.DurationHours
	m.DurationMinutes = r.DurationMinutes
}

// List returns movies newest first; ?search filters by name.
func (h *MovieHandler) List(c echo.Context) error {
	q := repository.MovieQuery{Search: c.QueryParam("search"), Page: pageFrom(c, 3)}
	movies, total, err := h.Movies.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newPage(movies, total, q.Page))
}

func (h *MovieHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	m, err := h.Movies.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MovieHandler) Create(c echo.Context) error {
	var req movieReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	var m model.Movie
	req.apply(&m)
	if err := h.Movies.Create(c.Request().Context(), &m); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Update edits a movie.  Existing showtimes keep the end time computed
// when they were scheduled.
func (h *MovieHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req movieReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	m, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	req.apply(m)
	if err := h.Movies.Update(ctx, m); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete removes a movie with its showtimes, invoices and seats, then its
// poster file.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	image, err := h.Movies.Delete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	h.removeAsset(image)
	return c.NoContent(http.StatusNoContent)
}

func (h *MovieHandler) removeAsset(name *string) {
	if name == nil {
		return
	}
	if err := h.Assets.Delete(*name); err != nil {
		logrus.WithError(err).WithField("file", *name).Warn("remove poster")
	}
}

// UploadImage stores the multipart file "image" as the movie's poster and
// replaces any previous one.
func (h *MovieHandler) UploadImage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	if _, err := h.Movies.GetByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart field image is required"})
	}
	if fh.Size > h.MaxBytes {
		return respondError(c, storage.ErrTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
	if err != nil {
		return respondError(c, err)
	}

	name, err := h.Assets.Store(fmt.Sprintf("movie-%d", id), data, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return respondError(c, err)
	}
	previous, err := h.Movies.SetImage(ctx, id, name)
	if err != nil {
		h.removeAsset(&name)
		return respondError(c, err)
	}
	h.removeAsset(previous)
	return c.JSON(http.StatusOK, echo.Map{"image": name})
}

// Image serves the movie's poster.
func (h *MovieHandler) Image(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	m, err := h.Movies.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if m.Image == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "movie has no image"})
	}
	data, err := h.Assets.Retrieve(*m.Image)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "movie has no image"})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Blob(http.StatusOK, mimetype.Detect(data).String(), data)
}

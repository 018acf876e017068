package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
	"github.com/iliyamo/cinema-management/internal/storage"
)

const maxPageSize = 100

// Validator adapts go-playground/validator to echo.Validator.  Field
// errors are reported under their json names.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns the validator installed on the echo instance.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fe := make(service.FieldErrors, 0, len(verrs))
		for _, e := range verrs {
			fe = append(fe, service.FieldError{Field: e.Field(), Message: ruleMessage(e)})
		}
		return fe
	}
	return err
}

func ruleMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must have at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must have at most %s characters", e.Param())
		}
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of " + e.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid (" + e.Tag() + ")"
}

// bindValid decodes the request body into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errBadBody
	}
	return c.Validate(req)
}

var errBadBody = errors.New("invalid body")

// respondError writes the JSON error for err.  Errors without a mapping
// are logged and reported as an opaque 500.
func respondError(c echo.Context, err error) error {
	var fe service.FieldErrors
	var de *repository.DuplicateError
	switch {
	case errors.Is(err, errBadBody):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	case errors.As(err, &fe):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid input", "fields": []service.FieldError(fe)})
	case errors.As(err, &de):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists", "fields": []service.FieldError{{Field: de.Field, Message: "already exists"}}})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrRoomInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": "room has showtimes",
			"fields": []service.FieldError{{Field: "rows", Message: "cannot change while the room has showtimes"},
				{Field: "columns", Message: "cannot change while the room has showtimes"}}})
	case errors.Is(err, service.ErrSeatTaken), errors.Is(err, service.ErrSoldOut):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrOutOfBounds), errors.Is(err, service.ErrInvalidRange):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrEmpty):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"component": "http",
		"method":    c.Request().Method,
		"path":      c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, repository.ErrNotFound)
	}
	return id, nil
}

// pageFrom reads ?page and ?limit, falling back to page 1 and def items.
func pageFrom(c echo.Context, def int) repository.Page {
	p := repository.Page{Number: 1, Size: def}
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		p.Size = min(n, maxPageSize)
	}
	return p
}

// pageResponse is the envelope of every paginated listing.
type pageResponse struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

func newPage(items any, total int64, p repository.Page) pageResponse {
	pages := int64(0)
	if p.Size > 0 {
		pages = (total + int64(p.Size) - 1) / int64(p.Size)
	}
	return pageResponse{Items: items, Total: total, Page: p.Number, Limit: p.Size, TotalPages: pages}
}

package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/repository"
)

// ReportHandler serves revenue reports.
type ReportHandler struct {
	Reports *repository.ReportRepo
	now     func() time.Time
}

func NewReportHandler(reports *repository.ReportRepo) *ReportHandler {
	return &ReportHandler{Reports: reports, now: time.Now}
}

// Movies returns, per movie, how many showtimes are still to come and
// what the past ones were expected to earn and actually earned.
func (h *ReportHandler) Movies(c echo.Context) error {
	q := repository.ReportQuery{Search: c.QueryParam("search"), Now: h.now().UTC(), Page: pageFrom(c, 3)}
	rows, total, err := h.Reports.MovieRevenue(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newPage(rows, total, q.Page))
}

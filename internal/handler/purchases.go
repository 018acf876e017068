package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
)

// PurchaseHandler sells seats and lists the invoices of a showtime.
type PurchaseHandler struct {
	Purchases *service.Purchases
	Showtimes *repository.ShowtimeRepo
	Invoices  *repository.InvoiceRepo
	Seats     *repository.SeatRepo
}

func NewPurchaseHandler(purchases *service.Purchases, showtimes *repository.ShowtimeRepo, invoices *repository.InvoiceRepo, seats *repository.SeatRepo) *PurchaseHandler {
	if purchases == nil || showtimes == nil || invoices == nil || seats == nil {
		panic("nil dependency passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{Purchases: purchases, Showtimes: showtimes, Invoices: invoices, Seats: seats}
}

type purchaseReq struct {
	CustomerName string            `json:"customer_name"`
	TaxID        string            `json:"tax_id"`
	Email        string            `json:"email"`
	ShowtimeID   uint64            `json:"showtime_id"`
	Seats        []model.SeatCoord `json:"seats"`
}

// Create buys the requested seats.  The seats are sold together or not
// at all; a receipt is emailed afterwards.
func (h *PurchaseHandler) Create(c echo.Context) error {
	var req purchaseReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	inv, err := h.Purchases.Purchase(c.Request().Context(), service.PurchaseRequest{
		CustomerName: req.CustomerName,
		TaxID:        req.TaxID,
		Email:        req.Email,
		ShowtimeID:   req.ShowtimeID,
		Seats:        req.Seats,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

// ListInvoices returns the showtime with a page of its invoices, oldest
// first.  ?search matches the exact tax id when numeric and the customer
// name otherwise.
func (h *PurchaseHandler) ListInvoices(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	grid, err := h.Showtimes.GetGrid(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	q := repository.InvoiceQuery{ShowtimeID: id, Search: c.QueryParam("search"), Page: pageFrom(c, 10)}
	invoices, total, err := h.Invoices.ListByShowtime(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	ids := make([]uint64, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	seats, err := h.Seats.ListByInvoices(ctx, ids)
	if err != nil {
		return respondError(c, err)
	}
	for i := range invoices {
		invoices[i].Seats = seats[invoices[i].ID]
		if invoices[i].Seats == nil {
			invoices[i].Seats = []model.Seat{}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime":   grid.Showtime,
		"room":       grid.Room,
		"movie_name": grid.MovieName,
		"invoices":   newPage(invoices, total, q.Page),
	})
}

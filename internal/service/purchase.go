package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/queue"
	"github.com/iliyamo/cinema-management/internal/repository"
)

const maxTaxID = 1_000_000_000

var validate = validator.New()

// ReceiptPublisher hands receipt requests to the background queue.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, ev queue.ReceiptRequested) error
}

// Purchases runs the purchase workflow: invoice and seats are written in
// one transaction, and the receipt is queued after the commit.
type Purchases struct {
	showtimes      *repository.ShowtimeRepo
	invoices       *repository.InvoiceRepo
	ledger         *Ledger
	receipts       ReceiptPublisher
	publishTimeout time.Duration
	now            func() time.Time
	log            *logrus.Entry
	wg             sync.WaitGroup
}

// NewPurchases wires the workflow.  receipts may be nil, in which case no
// receipt is sent.
func NewPurchases(showtimes *repository.ShowtimeRepo, invoices *repository.InvoiceRepo, ledger *Ledger, receipts ReceiptPublisher, publishTimeout time.Duration) *Purchases {
	if showtimes == nil || invoices == nil || ledger == nil {
		panic("nil dependency passed to NewPurchases")
	}
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &Purchases{
		showtimes:      showtimes,
		invoices:       invoices,
		ledger:         ledger,
		receipts:       receipts,
		publishTimeout: publishTimeout,
		now:            time.Now,
		log:            logrus.WithField("component", "purchases"),
	}
}

// PurchaseRequest is a customer's order for seats of one showtime.
type PurchaseRequest struct {
	CustomerName string
	TaxID        string
	Email        string
	ShowtimeID   uint64
	Seats        []model.SeatCoord
}

func validatePurchase(req PurchaseRequest) error {
	var errs FieldErrors
	name := strings.TrimSpace(req.CustomerName)
	if len([]rune(name)) < 3 {
		errs = errs.add("customer_name", "must have at least 3 characters")
	} else {
		for _, r := range name {
			if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
				errs = errs.add("customer_name", "may only contain letters and spaces")
				break
			}
		}
	}
	taxID := strings.TrimSpace(req.TaxID)
	if n, err := strconv.ParseUint(taxID, 10, 64); err != nil || n > maxTaxID {
		errs = errs.add("tax_id", fmt.Sprintf("must be a number between 0 and %d", maxTaxID))
	}
	if err := validate.Var(strings.TrimSpace(req.Email), "required,email"); err != nil {
		errs = errs.add("email", "must be a valid email address")
	}
	return errs.orNil()
}

// Purchase sells the requested seats and returns the invoice with its
// seats.  The invoice and the seats are committed together or not at
// all.  The receipt is dispatched asynchronously; its failure is only
// logged.
func (p *Purchases) Purchase(ctx context.Context, req PurchaseRequest) (*model.Invoice, error) {
	if err := validatePurchase(req); err != nil {
		return nil, err
	}

	tx, err := p.showtimes.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purchase: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	grid, err := p.showtimes.GetGridTx(ctx, tx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}
	// Reject bad coordinates before anything is written.
	if err := checkGrid(grid, req.Seats); err != nil {
		return nil, err
	}

	inv := &model.Invoice{
		CustomerName: strings.TrimSpace(req.CustomerName),
		TaxID:        strings.TrimSpace(req.TaxID),
		Email:        strings.TrimSpace(req.Email),
		TotalCents:   grid.Showtime.PriceCents * int64(len(req.Seats)),
		ShowtimeID:   grid.Showtime.ID,
		CreatedAt:    p.now().UTC().Truncate(time.Second),
	}
	if err := p.invoices.CreateTx(ctx, tx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	seats, err := p.ledger.Reserve(ctx, tx, grid, inv.ID, req.Seats)
	if err != nil {
		return nil, err
	}
	inv.Seats = seats

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}
	committed = true

	p.log.WithFields(logrus.Fields{
		"invoice_id":  inv.ID,
		"showtime_id": inv.ShowtimeID,
		"seats":       len(seats),
		"total_cents": inv.TotalCents,
	}).Info("purchase committed")

	p.dispatchReceipt(receiptFor(inv, grid))
	return inv, nil
}

func receiptFor(inv *model.Invoice, grid *repository.ShowtimeGrid) queue.ReceiptRequested {
	lines := make([]queue.ReceiptLine, len(inv.Seats))
	for i, s := range inv.Seats {
		lines[i] = queue.ReceiptLine{Label: s.Coord().Label(), UnitCents: grid.Showtime.PriceCents}
	}
	return queue.ReceiptRequested{
		InvoiceID:    inv.ID,
		CustomerName: inv.CustomerName,
		TaxID:        inv.TaxID,
		Email:        inv.Email,
		ShowtimeID:   inv.ShowtimeID,
		MovieName:    grid.MovieName,
		RoomName:     grid.Room.Name,
		StartsAt:     grid.Showtime.StartsAt.UTC().Format(time.RFC3339),
		Seats:        lines,
		TotalCents:   inv.TotalCents,
		PurchasedAt:  inv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// dispatchReceipt publishes in the background with its own deadline so
// the purchase response never waits on the broker.
func (p *Purchases) dispatchReceipt(ev queue.ReceiptRequested) {
	if p.receipts == nil {
		p.log.WithField("invoice_id", ev.InvoiceID).Debug("receipt delivery disabled")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
		defer cancel()
		if err := p.receipts.PublishReceipt(ctx, ev); err != nil {
			p.log.WithError(err).WithField("invoice_id", ev.InvoiceID).Warn("queue receipt")
		}
	}()
}

// Wait blocks until every receipt dispatched so far has been handed to
// the publisher.  Used on shutdown.
func (p *Purchases) Wait() {
	p.wg.Wait()
}

package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-management/internal/model"
)

// RenderReceipt builds the subject and plain-text body of the receipt
// email for ev.  Amounts are prefixed with currency.
func RenderReceipt(ev ReceiptRequested, currency string) (subject, body string) {
	subject = fmt.Sprintf("Your tickets for %s (invoice #%d)", ev.MovieName, ev.InvoiceID)

	starts := ev.StartsAt
	if t, err := time.Parse(time.RFC3339, ev.StartsAt); err == nil {
		starts = t.UTC().Format("02/01/2006 15:04 UTC")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", ev.CustomerName)
	b.WriteString("Thank you for your purchase.\n\n")
	fmt.Fprintf(&b, "Invoice:  #%d\n", ev.InvoiceID)
	fmt.Fprintf(&b, "Tax ID:   %s\n", ev.TaxID)
	fmt.Fprintf(&b, "Movie:    %s\n", ev.MovieName)
	fmt.Fprintf(&b, "Room:     %s\n", ev.RoomName)
	fmt.Fprintf(&b, "Starts:   %s\n\n", starts)
	b.WriteString("Seats:\n")
	for _, s := range ev.Seats {
		fmt.Fprintf(&b, "  %-20s %s %s\n", s.Label, currency, model.FormatCents(s.UnitCents))
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", currency, model.FormatCents(ev.TotalCents))
	return subject, b.String()
}

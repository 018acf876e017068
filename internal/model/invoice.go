package model

import (
	"fmt"
	"time"
)

// Invoice records a completed purchase.  TotalCents always equals the
// showtime unit price times len(Seats).
type Invoice struct {
	ID           uint64    `json:"id"`            // invoices.id
	CustomerName string    `json:"customer_name"` // invoices.customer_name
	TaxID        string    `json:"tax_id"`        // invoices.tax_id
	Email        string    `json:"email"`         // invoices.email
	TotalCents   int64     `json:"total_cents"`   // invoices.total_cents
	ShowtimeID   uint64    `json:"showtime_id"`   // invoices.showtime_id
	CreatedAt    time.Time `json:"created_at"`    // invoices.created_at
	Seats        []Seat    `json:"seats"`
}

// FormatCents renders an amount of cents as a decimal string, e.g. 1250 -> "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

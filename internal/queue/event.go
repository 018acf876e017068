package queue

// ReceiptLine is one purchased seat on a receipt.
type ReceiptLine struct {
	Label     string `json:"label"`
	UnitCents int64  `json:"unit_cents"`
}

// ReceiptRequested is published once a purchase has committed.  It
// carries everything the receipt needs, so the consumer never queries the
// primary database.
type ReceiptRequested struct {
	InvoiceID    uint64        `json:"invoice_id"`
	CustomerName string        `json:"customer_name"`
	TaxID        string        `json:"tax_id"`
	Email        string        `json:"email"`
	ShowtimeID   uint64        `json:"showtime_id"`
	MovieName    string        `json:"movie_name"`
	RoomName     string        `json:"room_name"`
	StartsAt     string        `json:"starts_at"` // RFC 3339, UTC
	Seats        []ReceiptLine `json:"seats"`
	TotalCents   int64         `json:"total_cents"`
	PurchasedAt  string        `json:"purchased_at"` // RFC 3339, UTC
}

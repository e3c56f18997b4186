package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketType struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalQuantity int             `json:"total_quantity"`
	QuantitySold  int             `json:"quantity_sold"`
	Refundable    bool            `json:"refundable"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Available returns the seats left to sell, never negative.
func (t TicketType) Available() int {
	if n := t.TotalQuantity - t.QuantitySold; n > 0 {
		return n
	}
	return 0
}

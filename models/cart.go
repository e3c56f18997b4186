package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLineItem struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	TicketTypeID      string          `json:"ticket_type_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
	MaxQuantity       int             `json:"max_quantity"` // min(available, per-purchase cap) at add time
	AddedAt           time.Time       `json:"added_at"`
}

func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.UnitPriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is a point-in-time copy of one user's cart handed to checkout.
type CartSnapshot struct {
	UserID  string         `json:"user_id"`
	Items   []CartLineItem `json:"items"`
	TakenAt time.Time      `json:"taken_at"`
}

func (c CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

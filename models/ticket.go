package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketAttended  TicketStatus = "attended"
	TicketCancelled TicketStatus = "cancelled"
)

// CanTransition allows only active->attended and active->cancelled.
func (s TicketStatus) CanTransition(to TicketStatus) bool {
	return s == TicketActive && (to == TicketAttended || to == TicketCancelled)
}

// Ticket is an issued purchase of one or more seats of a single ticket type.
type Ticket struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	EventID        string          `json:"event_id"`
	TicketTypeID   string          `json:"ticket_type_id"`
	CheckoutID     string          `json:"checkout_id"`
	Quantity       int             `json:"quantity"`
	TotalPricePaid decimal.Decimal `json:"total_price_paid"`
	Status         TicketStatus    `json:"status"`
	PurchaseDate   time.Time       `json:"purchase_date"`
}

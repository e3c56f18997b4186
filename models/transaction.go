package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionSale   TransactionType = "sale"
	TransactionPayout TransactionType = "payout"
	TransactionFee    TransactionType = "fee"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSettled TransactionStatus = "settled"
	TransactionFailed  TransactionStatus = "failed"
)

// CanTransition reports whether a transaction may move from s to the given status.
// A failed transaction is terminal.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return to == TransactionSettled || to == TransactionFailed
	case TransactionSettled:
		return to == TransactionFailed
	}
	return false
}

// Transaction is an append-only ledger entry. Only Status ever changes.
type Transaction struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	OrganizerID     string            `json:"organizer_id"`
	EventID         string            `json:"event_id,omitempty"`
	RelatedTicketID string            `json:"related_ticket_id,omitempty"`
	RelatedPayoutID string            `json:"related_payout_id,omitempty"`
	Type            TransactionType   `json:"type"`
	Amount          decimal.Decimal   `json:"amount"`
	FeePercent      decimal.Decimal   `json:"fee_percent"`        // platform fee snapshot, sales only
	Quantity        int               `json:"quantity,omitempty"` // seats sold, sales only
	Status          TransactionStatus `json:"status"`
	TransactionDate time.Time         `json:"transaction_date"`
}

// TransactionFilter selects transactions from the log. Zero fields match everything;
// From is inclusive and To exclusive.
type TransactionFilter struct {
	OrganizerID string
	EventID     string
	UserID      string
	Types       []TransactionType
	From        time.Time
	To          time.Time
}

func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.OrganizerID != "" && tx.OrganizerID != f.OrganizerID {
		return false
	}
	if f.EventID != "" && tx.EventID != f.EventID {
		return false
	}
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == tx.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && tx.TransactionDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.TransactionDate.Before(f.To) {
		return false
	}
	return true
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutRequestStatus string

const (
	PayoutRequestPending  PayoutRequestStatus = "pending"
	PayoutRequestApproved PayoutRequestStatus = "approved"
	PayoutRequestRejected PayoutRequestStatus = "rejected"
)

type PayoutStatus string

const (
	PayoutProcessing PayoutStatus = "processing"
	PayoutProcessed  PayoutStatus = "processed"
	PayoutFailed     PayoutStatus = "failed"
)

type PayoutRequest struct {
	ID              string              `json:"id"`
	OrganizerID     string              `json:"organizer_id"`
	EventID         string              `json:"event_id,omitempty"`
	RequestedAmount decimal.Decimal     `json:"requested_amount"`
	Status          PayoutRequestStatus `json:"status"`
	Reason          string              `json:"reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
}

type Payout struct {
	ID            string          `json:"id"`
	RequestID     string          `json:"request_id"`
	OrganizerID   string          `json:"organizer_id"`
	EventID       string          `json:"event_id,omitempty"`
	Reference     string          `json:"reference"`
	PayoutAmount  decimal.Decimal `json:"payout_amount"`
	PayoutFee     decimal.Decimal `json:"payout_fee"`
	PayoutStatus  PayoutStatus    `json:"payout_status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ProcessedDate *time.Time      `json:"processed_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

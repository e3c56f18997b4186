package services

import (
	"context"
	"time"

	"eventhub/models"
)

// Store backends wrap driver errors in status.ErrStorageFailure and report
// missing rows as status.ErrNotFound.

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	SaveEvent(ctx context.Context, event *models.Event) error
}

type InventoryStore interface {
	CreateTicketType(ctx context.Context, tt *models.TicketType) error
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	// IncrementSold adds qty to quantity_sold only while the result stays
	// within total_quantity, else status.ErrInsufficientInventory.
	IncrementSold(ctx context.Context, id string, qty int) error
	// DecrementSold subtracts qty only while quantity_sold stays >= 0,
	// else status.ErrInvalidState.
	DecrementSold(ctx context.Context, id string, qty int) error
}

type TicketStore interface {
	// IssueTicket persists the ticket and its sale transaction as one unit.
	IssueTicket(ctx context.Context, ticket *models.Ticket, sale *models.Transaction) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	// UpdateTicketStatus moves the ticket only if it is currently in from.
	UpdateTicketStatus(ctx context.Context, id string, from, to models.TicketStatus) error
	// CancelTicket cancels an active ticket and fails its sale transaction together.
	CancelTicket(ctx context.Context, id string) error
}

type TransactionLog interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
}

type PayoutStore interface {
	CreateRequest(ctx context.Context, req *models.PayoutRequest) error
	GetRequest(ctx context.Context, id string) (*models.PayoutRequest, error)
	ListRequests(ctx context.Context, organizerID string) ([]models.PayoutRequest, error)
	// ApproveRequest moves a pending request to approved and stores the payout
	// with its ledger transactions in the same unit of work.
	ApproveRequest(ctx context.Context, requestID string, decidedAt time.Time, payout *models.Payout, txns []models.Transaction) error
	RejectRequest(ctx context.Context, requestID, reason string, decidedAt time.Time) error
	GetPayout(ctx context.Context, id string) (*models.Payout, error)
	ListPayouts(ctx context.Context, organizerID string) ([]models.Payout, error)
	// FinishPayout moves a processing payout to processed or failed and
	// settles or fails its pending transactions.
	FinishPayout(ctx context.Context, payoutID string, to models.PayoutStatus, reason string, at time.Time) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Store is the full persistence surface implemented by every backend.
type Store interface {
	EventStore
	InventoryStore
	TicketStore
	TransactionLog
	PayoutStore
	UserStore
}

// IdempotencyStore records checkout attempts so retries are answered from the
// first result instead of issuing tickets twice.
type IdempotencyStore interface {
	// Claim takes key for the current caller. When key was already completed
	// the stored result is returned with claimed=false; when it is still being
	// processed both prior and claimed are empty.
	Claim(ctx context.Context, key string, ttl time.Duration) (prior []byte, claimed bool, err error)
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type Notifier interface {
	Notify(ctx context.Context, channel string, payload map[string]any) error
}

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventhub/internal/services"
	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ services.Store            = (*Memory)(nil)
	_ services.Store            = (*Postgres)(nil)
	_ services.Store            = (*PocketBase)(nil)
	_ services.IdempotencyStore = (*RedisIdempotency)(nil)
	_ services.IdempotencyStore = (*MemoryIdempotency)(nil)
)

func seedTicketType(t *testing.T, m *Memory, total, sold int) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:            "tt-1",
		EventID:       "evt-1",
		Name:          "GA",
		UnitPrice:     decimal.NewFromInt(10),
		TotalQuantity: total,
		QuantitySold:  sold,
	}
	require.NoError(t, m.CreateTicketType(context.Background(), tt))
	return tt
}

func TestMemory_IncrementSoldIsConditional(t *testing.T) {
	m := NewMemory()
	seedTicketType(t, m, 10, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementSold(ctx, "tt-1", 1)
		}()
	}
	wg.Wait()

	tt, err := m.GetTicketType(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 10, tt.QuantitySold)
	assert.ErrorIs(t, m.IncrementSold(ctx, "tt-1", 1), status.ErrInsufficientInventory)
	assert.ErrorIs(t, m.IncrementSold(ctx, "missing", 1), status.ErrNotFound)
}

func TestMemory_DecrementSoldNeverNegative(t *testing.T) {
	m := NewMemory()
	seedTicketType(t, m, 10, 2)
	ctx := context.Background()

	assert.ErrorIs(t, m.DecrementSold(ctx, "tt-1", 3), status.ErrInvalidState)
	require.NoError(t, m.DecrementSold(ctx, "tt-1", 2))

	tt, err := m.GetTicketType(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, tt.QuantitySold)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	seedTicketType(t, m, 10, 0)
	ctx := context.Background()

	tt, err := m.GetTicketType(ctx, "tt-1")
	require.NoError(t, err)
	tt.QuantitySold = 99

	again, err := m.GetTicketType(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.QuantitySold)
}

func TestMemory_CancelTicketFailsSale(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ticket := &models.Ticket{ID: "t-1", UserID: "u", EventID: "evt-1", Quantity: 1, Status: models.TicketActive}
	sale := &models.Transaction{ID: "tx-1", OrganizerID: "org", RelatedTicketID: "t-1", Type: models.TransactionSale,
		Amount: decimal.NewFromInt(10), Status: models.TransactionSettled}
	require.NoError(t, m.IssueTicket(ctx, ticket, sale))

	require.NoError(t, m.CancelTicket(ctx, "t-1"))
	assert.ErrorIs(t, m.CancelTicket(ctx, "t-1"), status.ErrInvalidState)

	got, err := m.GetTicket(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, got.Status)

	txns, err := m.ListTransactions(ctx, models.TransactionFilter{OrganizerID: "org"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionFailed, txns[0].Status)
}

func TestMemory_PayoutLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.CreateRequest(ctx, &models.PayoutRequest{
		ID: "r-1", OrganizerID: "org", RequestedAmount: decimal.NewFromInt(100),
		Status: models.PayoutRequestPending, CreatedAt: now,
	}))

	payout := &models.Payout{ID: "p-1", RequestID: "r-1", OrganizerID: "org", PayoutStatus: models.PayoutProcessing}
	txns := []models.Transaction{{ID: "tx-p", OrganizerID: "org", RelatedPayoutID: "p-1", Type: models.TransactionPayout,
		Amount: decimal.NewFromInt(100), Status: models.TransactionPending}}

	require.NoError(t, m.ApproveRequest(ctx, "r-1", now, payout, txns))
	assert.ErrorIs(t, m.ApproveRequest(ctx, "r-1", now, payout, txns), status.ErrInvalidState)
	assert.ErrorIs(t, m.RejectRequest(ctx, "r-1", "no", now), status.ErrInvalidState)

	require.NoError(t, m.FinishPayout(ctx, "p-1", models.PayoutFailed, "closed account", now))
	assert.ErrorIs(t, m.FinishPayout(ctx, "p-1", models.PayoutProcessed, "", now), status.ErrInvalidState)

	list, err := m.ListTransactions(ctx, models.TransactionFilter{Types: []models.TransactionType{models.TransactionPayout}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.TransactionFailed, list[0].Status)

	payouts, err := m.ListPayouts(ctx, "org")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, "closed account", payouts[0].FailureReason)
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutFees_Fee(t *testing.T) {
	fees := PayoutFees{Percent: dec("1"), Flat: dec("0.50")}

	tests := []struct {
		amount string
		want   string
	}{
		{"100", "1.5"},
		{"33.33", "0.83"},
		{"0.40", "0.40"}, // capped at the amount
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.True(t, dec(tt.want).Equal(fees.Fee(dec(tt.amount))), "got %s", fees.Fee(dec(tt.amount)))
		})
	}

	assert.True(t, PayoutFees{}.Fee(dec("100")).IsZero())
}

func TestPayout_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "1000", "15", time.Now())

	_, err := f.payouts.SubmitRequest(ctx, organizerID, "", dec("850.01"))
	assert.ErrorIs(t, err, status.ErrInsufficientBalance)

	reqs, err := f.payouts.ListRequests(ctx, organizerID)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	bal, err := f.ledger.AvailableBalance(ctx, organizerID)
	require.NoError(t, err)
	assert.True(t, dec("850").Equal(bal.Available))
}

func TestPayout_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "1000", "15", time.Now())
	foreign := f.addEvent(t, "org-2")

	_, err := f.payouts.SubmitRequest(ctx, organizerID, "", decimal.Zero)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	_, err = f.payouts.SubmitRequest(ctx, organizerID, "", dec("-5"))
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	_, err = f.payouts.SubmitRequest(ctx, organizerID, "", dec("1.005"))
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	_, err = f.payouts.SubmitRequest(ctx, organizerID, foreign.ID, dec("10"))
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestPayout_ConcurrentRequestsCannotOverspend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "1000", "15", time.Now()) // 850 available

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payouts.SubmitRequest(ctx, organizerID, "", dec("300"))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	bal, err := f.ledger.AvailableBalance(ctx, organizerID)
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(bal.Available))
}

func TestPayout_StateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "1000", "15", time.Now())

	req, err := f.payouts.SubmitRequest(ctx, organizerID, "", dec("500"))
	require.NoError(t, err)
	assert.Equal(t, models.PayoutRequestPending, req.Status)

	payout, err := f.payouts.Approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessing, payout.PayoutStatus)
	assert.True(t, dec("5.50").Equal(payout.PayoutFee))
	assert.True(t, dec("494.50").Equal(payout.PayoutAmount))
	assert.Contains(t, payout.Reference, "PO-")

	// approval moves the amount from outstanding to paid out
	bal, err := f.ledger.AvailableBalance(ctx, organizerID)
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(bal.PaidOut))
	assert.True(t, bal.Outstanding.IsZero())
	assert.True(t, dec("350").Equal(bal.Available))

	_, err = f.payouts.Approve(ctx, req.ID)
	assert.ErrorIs(t, err, status.ErrInvalidState)
	_, err = f.payouts.Reject(ctx, req.ID, "late")
	assert.ErrorIs(t, err, status.ErrInvalidState)

	done, err := f.payouts.MarkProcessed(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessed, done.PayoutStatus)
	require.NotNil(t, done.ProcessedDate)

	_, err = f.payouts.MarkFailed(ctx, payout.ID, "bank bounced")
	assert.ErrorIs(t, err, status.ErrInvalidState)

	txns, err := f.store.ListTransactions(ctx, models.TransactionFilter{
		OrganizerID: organizerID,
		Types:       []models.TransactionType{models.TransactionPayout, models.TransactionFee},
	})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, tx := range txns {
		assert.Equal(t, models.TransactionSettled, tx.Status)
		assert.Equal(t, payout.ID, tx.RelatedPayoutID)
	}
}

func TestPayout_FailedPayoutRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "1000", "15", time.Now())

	req, err := f.payouts.SubmitRequest(ctx, organizerID, "", dec("850"))
	require.NoError(t, err)
	payout, err := f.payouts.Approve(ctx, req.ID)
	require.NoError(t, err)

	failed, err := f.payouts.MarkFailed(ctx, payout.ID, "invalid account")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutFailed, failed.PayoutStatus)
	assert.Equal(t, "invalid account", failed.FailureReason)

	bal, err := f.ledger.AvailableBalance(ctx, organizerID)
	require.NoError(t, err)
	assert.True(t, dec("850").Equal(bal.Available))
}

func TestPayout_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSale(t, f.store, "evt-1", "100", "0", time.Now())

	req, err := f.payouts.SubmitRequest(ctx, organizerID, "", dec("100"))
	require.NoError(t, err)

	_, err = f.payouts.Reject(ctx, req.ID, " ")
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	rejected, err := f.payouts.Reject(ctx, req.ID, "missing tax form")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutRequestRejected, rejected.Status)
	assert.Equal(t, "missing tax form", rejected.Reason)
	require.NotNil(t, rejected.DecidedAt)

	_, err = f.payouts.Approve(ctx, req.ID)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	bal, err := f.ledger.AvailableBalance(ctx, organizerID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(bal.Available))

	payouts, err := f.payouts.ListPayouts(ctx, organizerID)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

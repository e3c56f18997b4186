package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventhub/internal/store"
	"eventhub/models"
	"eventhub/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotifier records notifications; expectations are optional.
type MockNotifier struct {
	mock.Mock

	mu    sync.Mutex
	calls []notification
}

type notification struct {
	channel string
	payload map[string]any
}

func (m *MockNotifier) Notify(ctx context.Context, channel string, payload map[string]any) error {
	m.mu.Lock()
	m.calls = append(m.calls, notification{channel: channel, payload: payload})
	m.mu.Unlock()

	if len(m.ExpectedCalls) == 0 {
		return nil
	}
	args := m.Called(channel, payload)
	return args.Error(0)
}

func (m *MockNotifier) Calls() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification, len(m.calls))
	copy(out, m.calls)
	return out
}

type fixture struct {
	store    *store.Memory
	idem     *store.MemoryIdempotency
	notifier *MockNotifier
	catalog  *Catalog
	carts    *CartStore
	pipeline *PurchasePipeline
	ledger   *RevenueLedger
	payouts  *PayoutWorkflow
}

const (
	organizerID = "org-1"
	attendeeID  = "user-1"
)

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, store.NewMemory(), nil)
}

// newFixtureWith lets tests swap the ticket store, e.g. for failure injection.
func newFixtureWith(t *testing.T, mem *store.Memory, tickets TicketStore) *fixture {
	t.Helper()

	if tickets == nil {
		tickets = mem
	}
	fee := decimal.NewFromInt(15)
	mem.PutUser(models.User{ID: organizerID, Role: models.RoleOrganizer, FeePercent: &fee})
	mem.PutUser(models.User{ID: attendeeID, Role: models.RoleAttendee})

	f := &fixture{
		store:    mem,
		idem:     store.NewMemoryIdempotency(),
		notifier: &MockNotifier{},
	}
	f.catalog = NewCatalog(mem, mem)
	f.carts = NewCartStore(f.catalog, DefaultMaxPerPurchase)
	f.pipeline = NewPurchasePipeline(f.catalog, f.carts, mem, tickets, mem, f.idem, f.notifier, PipelineConfig{
		DefaultFeePercent: decimal.NewFromInt(10),
	})
	f.ledger = NewRevenueLedger(mem, mem)
	f.payouts = NewPayoutWorkflow(f.ledger, mem, mem, f.notifier, PayoutFees{
		Percent: decimal.NewFromInt(1),
		Flat:    decimal.RequireFromString("0.50"),
	})
	return f
}

func (f *fixture) addEvent(t *testing.T, organizer string) *models.Event {
	t.Helper()

	e := &models.Event{
		ID:          utils.NewID(),
		OrganizerID: organizer,
		Title:       "Test Concert",
		Venue:       "Test Arena",
		StartTime:   time.Now().Add(48 * time.Hour),
		EndTime:     time.Now().Add(52 * time.Hour),
		Status:      models.EventPublished,
	}
	require.NoError(t, f.store.SaveEvent(context.Background(), e))
	return e
}

func (f *fixture) addTicketType(t *testing.T, eventID, price string, total, sold int, refundable bool) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:            utils.NewID(),
		EventID:       eventID,
		Name:          "General Admission",
		UnitPrice:     decimal.RequireFromString(price),
		TotalQuantity: total,
		QuantitySold:  sold,
		Refundable:    refundable,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, f.store.CreateTicketType(context.Background(), tt))
	return tt
}

func (f *fixture) sold(t *testing.T, ticketTypeID string) int {
	t.Helper()

	tt, err := f.store.GetTicketType(context.Background(), ticketTypeID)
	require.NoError(t, err)
	return tt.QuantitySold
}

// sell checks out qty seats of tt for a fresh attendee.
func (f *fixture) sell(t *testing.T, tt *models.TicketType, qty int) *CheckoutResult {
	t.Helper()

	ctx := context.Background()
	buyer := utils.NewID()
	_, err := f.carts.AddItem(ctx, buyer, tt.ID, qty)
	require.NoError(t, err)

	res, err := f.pipeline.Checkout(ctx, CheckoutRequest{UserID: buyer})
	require.NoError(t, err)
	require.Empty(t, res.Failed())
	return res
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

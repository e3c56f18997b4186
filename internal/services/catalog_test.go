package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_NoOversellUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, organizerID)
	tt := f.addTicketType(t, event.ID, "20", 25, 0, false)

	const workers = 100
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.catalog.ReserveIfAvailable(context.Background(), tt.ID, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, status.ErrInsufficientInventory):
				short.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), succeeded.Load())
	assert.Equal(t, int32(workers-25), short.Load())
	assert.Equal(t, 25, f.sold(t, tt.ID))
}

func TestCatalog_ReserveSoldOut(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, organizerID)
	tt := f.addTicketType(t, event.ID, "20", 5, 5, false)

	err := f.catalog.ReserveIfAvailable(context.Background(), tt.ID, 1)

	assert.ErrorIs(t, err, status.ErrInsufficientInventory)
	assert.Equal(t, 5, f.sold(t, tt.ID))
}

func TestCatalog_ReserveValidation(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, organizerID)
	tt := f.addTicketType(t, event.ID, "20", 5, 0, false)
	ctx := context.Background()

	assert.ErrorIs(t, f.catalog.ReserveIfAvailable(ctx, tt.ID, 0), status.ErrInvalidInput)
	assert.ErrorIs(t, f.catalog.ReserveIfAvailable(ctx, tt.ID, -2), status.ErrInvalidInput)
	assert.ErrorIs(t, f.catalog.ReserveIfAvailable(ctx, "missing", 1), status.ErrNotFound)
	assert.ErrorIs(t, f.catalog.ReserveIfAvailable(ctx, tt.ID, 6), status.ErrInsufficientInventory)

	require.NoError(t, f.catalog.ReserveIfAvailable(ctx, tt.ID, 5))
	seats, err := f.catalog.AvailableSeats(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, seats)
}

func TestCatalog_Release(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, organizerID)
	tt := f.addTicketType(t, event.ID, "20", 10, 3, false)
	ctx := context.Background()

	require.NoError(t, f.catalog.Release(ctx, tt.ID, 2))
	assert.Equal(t, 1, f.sold(t, tt.ID))

	err := f.catalog.Release(ctx, tt.ID, 2)
	assert.ErrorIs(t, err, status.ErrInvalidState)
	assert.Equal(t, 1, f.sold(t, tt.ID))
}

func TestCatalog_CreateTicketType(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, organizerID)
	ctx := context.Background()

	tests := []struct {
		name      string
		organizer string
		input     TicketTypeInput
		wantErr   error
	}{
		{"valid", organizerID, TicketTypeInput{EventID: event.ID, Name: "VIP", UnitPrice: dec("120"), TotalQuantity: 50}, nil},
		{"free tickets allowed", organizerID, TicketTypeInput{EventID: event.ID, Name: "Guest", UnitPrice: decimal.Zero, TotalQuantity: 5}, nil},
		{"blank name", organizerID, TicketTypeInput{EventID: event.ID, Name: "  ", UnitPrice: dec("10"), TotalQuantity: 5}, status.ErrInvalidInput},
		{"negative price", organizerID, TicketTypeInput{EventID: event.ID, Name: "x", UnitPrice: dec("-1"), TotalQuantity: 5}, status.ErrInvalidInput},
		{"sub-cent price", organizerID, TicketTypeInput{EventID: event.ID, Name: "x", UnitPrice: dec("10.005"), TotalQuantity: 5}, status.ErrInvalidInput},
		{"trailing zeros allowed", organizerID, TicketTypeInput{EventID: event.ID, Name: "Early", UnitPrice: dec("9.500"), TotalQuantity: 5}, nil},
		{"zero seats", organizerID, TicketTypeInput{EventID: event.ID, Name: "x", UnitPrice: dec("1"), TotalQuantity: 0}, status.ErrInvalidInput},
		{"unknown event", organizerID, TicketTypeInput{EventID: "nope", Name: "x", UnitPrice: dec("1"), TotalQuantity: 1}, status.ErrNotFound},
		{"foreign event", "org-2", TicketTypeInput{EventID: event.ID, Name: "x", UnitPrice: dec("1"), TotalQuantity: 1}, status.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := f.catalog.CreateTicketType(ctx, tt.organizer, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, created.QuantitySold)
			assert.Equal(t, tt.input.TotalQuantity, created.Available())
		})
	}

	list, err := f.catalog.ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCatalog_EventLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

	_, err := f.catalog.CreateEvent(ctx, organizerID, EventInput{Title: " "})
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	_, err = f.catalog.CreateEvent(ctx, organizerID, EventInput{Title: "Gig", StartTime: start, EndTime: start.Add(-time.Hour)})
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	event, err := f.catalog.CreateEvent(ctx, organizerID, EventInput{Title: "Gig", StartTime: start, EndTime: start.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, models.EventDraft, event.Status)

	_, err = f.catalog.PublishEvent(ctx, "org-2", event.ID)
	assert.ErrorIs(t, err, status.ErrForbidden)

	published, err := f.catalog.PublishEvent(ctx, organizerID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventPublished, published.Status)

	_, err = f.catalog.PublishEvent(ctx, organizerID, event.ID)
	assert.ErrorIs(t, err, status.ErrInvalidState)

	got, err := f.catalog.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventPublished, got.Status)
}

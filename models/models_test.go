package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTicketType_Available(t *testing.T) {
	tests := []struct {
		name  string
		total int
		sold  int
		want  int
	}{
		{"fresh", 10, 0, 10},
		{"partially sold", 10, 4, 6},
		{"sold out", 5, 5, 0},
		{"oversold clamps to zero", 5, 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt2 := TicketType{TotalQuantity: tt.total, QuantitySold: tt.sold}
			assert.Equal(t, tt.want, tt2.Available())
		})
	}
}

func TestTicketStatus_CanTransition(t *testing.T) {
	assert.True(t, TicketActive.CanTransition(TicketAttended))
	assert.True(t, TicketActive.CanTransition(TicketCancelled))
	assert.False(t, TicketAttended.CanTransition(TicketCancelled))
	assert.False(t, TicketCancelled.CanTransition(TicketActive))
	assert.False(t, TicketActive.CanTransition(TicketActive))
}

func TestTransactionStatus_CanTransition(t *testing.T) {
	assert.True(t, TransactionPending.CanTransition(TransactionSettled))
	assert.True(t, TransactionPending.CanTransition(TransactionFailed))
	assert.True(t, TransactionSettled.CanTransition(TransactionFailed))
	assert.False(t, TransactionSettled.CanTransition(TransactionPending))
	assert.False(t, TransactionFailed.CanTransition(TransactionSettled))
}

func TestTransactionFilter_Matches(t *testing.T) {
	day := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := Transaction{
		OrganizerID:     "org-1",
		EventID:         "evt-1",
		Type:            TransactionSale,
		TransactionDate: day,
	}

	assert.True(t, TransactionFilter{}.Matches(tx))
	assert.True(t, TransactionFilter{OrganizerID: "org-1", EventID: "evt-1"}.Matches(tx))
	assert.False(t, TransactionFilter{OrganizerID: "org-2"}.Matches(tx))
	assert.False(t, TransactionFilter{Types: []TransactionType{TransactionPayout, TransactionFee}}.Matches(tx))
	assert.True(t, TransactionFilter{Types: []TransactionType{TransactionFee, TransactionSale}}.Matches(tx))

	// half-open window
	assert.True(t, TransactionFilter{From: day, To: day.Add(time.Hour)}.Matches(tx))
	assert.False(t, TransactionFilter{From: day.Add(-time.Hour), To: day}.Matches(tx))
}

func TestCartSnapshot_Total(t *testing.T) {
	snap := CartSnapshot{Items: []CartLineItem{
		{Quantity: 2, UnitPriceSnapshot: decimal.RequireFromString("25.50")},
		{Quantity: 1, UnitPriceSnapshot: decimal.RequireFromString("10")},
	}}
	assert.True(t, decimal.RequireFromString("61").Equal(snap.Total()))
}

func TestFeeScheduleFor(t *testing.T) {
	def := decimal.NewFromInt(10)

	assert.True(t, FeeScheduleFor(User{Role: RoleAttendee}, def).Percent.IsZero())
	assert.True(t, FeeScheduleFor(User{Role: RoleAdmin}, def).Percent.IsZero())
	assert.True(t, def.Equal(FeeScheduleFor(User{Role: RoleOrganizer}, def).Percent))

	fifteen := decimal.NewFromInt(15)
	custom := User{Role: RoleOrganizer, FeePercent: &fifteen}
	assert.True(t, fifteen.Equal(FeeScheduleFor(custom, def).Percent))

	zero := decimal.Zero
	waived := User{Role: RoleOrganizer, FeePercent: &zero}
	assert.True(t, FeeScheduleFor(waived, def).Percent.IsZero())

	attendee := User{Role: RoleAttendee, FeePercent: &fifteen}
	assert.True(t, FeeScheduleFor(attendee, def).Percent.IsZero())
}

func TestEvent_OpenForSales(t *testing.T) {
	assert.True(t, Event{Status: EventPublished}.OpenForSales())
	assert.True(t, Event{Status: EventDraft}.OpenForSales())
	assert.False(t, Event{Status: EventCompleted}.OpenForSales())
	assert.False(t, Event{Status: EventCancelled}.OpenForSales())
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventhub/internal/status"
	"eventhub/models"
	"eventhub/monitoring"
	"eventhub/utils"

	"github.com/shopspring/decimal"
)

type TicketTypeInput struct {
	EventID       string          `json:"event_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalQuantity int             `json:"total_quantity"`
	Refundable    bool            `json:"refundable"`
}

// Catalog owns ticket types and is the only writer of quantity_sold.
type Catalog struct {
	inventory InventoryStore
	events    EventStore
	locks     *utils.KeyedMutex
	now       func() time.Time
}

func NewCatalog(inventory InventoryStore, events EventStore) *Catalog {
	return &Catalog{
		inventory: inventory,
		events:    events,
		locks:     utils.NewKeyedMutex(),
		now:       time.Now,
	}
}

func (c *Catalog) Get(ctx context.Context, ticketTypeID string) (*models.TicketType, error) {
	return c.inventory.GetTicketType(ctx, ticketTypeID)
}

func (c *Catalog) ListByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	if _, err := c.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return c.inventory.ListTicketTypes(ctx, eventID)
}

func (c *Catalog) AvailableSeats(ctx context.Context, ticketTypeID string) (int, error) {
	tt, err := c.inventory.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	return tt.Available(), nil
}

// ReserveIfAvailable commits qty seats or fails with ErrInsufficientInventory
// when fewer are left right now. The store's conditional update decides the
// outcome across processes; the keyed lock only avoids needless contention.
func (c *Catalog) ReserveIfAvailable(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", status.ErrInvalidInput, qty)
	}

	unlock := c.locks.Lock(ticketTypeID)
	defer unlock()

	tt, err := c.inventory.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		monitoring.TrackReservation("error")
		return err
	}

	if available := tt.Available(); qty > available {
		monitoring.TrackReservation("insufficient")
		return fmt.Errorf("%w: ticket type %s has %d seats left, requested %d",
			status.ErrInsufficientInventory, ticketTypeID, available, qty)
	}

	if err := c.inventory.IncrementSold(ctx, ticketTypeID, qty); err != nil {
		if errors.Is(err, status.ErrInsufficientInventory) {
			monitoring.TrackReservation("insufficient")
		} else {
			monitoring.TrackReservation("error")
		}
		return err
	}

	monitoring.TrackReservation("reserved")
	return nil
}

// Release gives back seats taken by ReserveIfAvailable.
func (c *Catalog) Release(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", status.ErrInvalidInput, qty)
	}

	unlock := c.locks.Lock(ticketTypeID)
	defer unlock()

	if err := c.inventory.DecrementSold(ctx, ticketTypeID, qty); err != nil {
		return fmt.Errorf("release %d seats of %s: %w", qty, ticketTypeID, err)
	}

	slog.Info("seats released", "ticket_type_id", ticketTypeID, "quantity", qty)
	return nil
}

func (c *Catalog) CreateTicketType(ctx context.Context, organizerID string, in TicketTypeInput) (*models.TicketType, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", status.ErrInvalidInput)
	case in.UnitPrice.IsNegative():
		return nil, fmt.Errorf("%w: unit price must not be negative", status.ErrInvalidInput)
	case !in.UnitPrice.Equal(in.UnitPrice.Round(2)):
		return nil, fmt.Errorf("%w: unit price has more than two decimal places", status.ErrInvalidInput)
	case in.TotalQuantity < 1:
		return nil, fmt.Errorf("%w: total quantity must be at least 1", status.ErrInvalidInput)
	}

	event, err := c.events.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, fmt.Errorf("%w: event %s belongs to another organizer", status.ErrForbidden, event.ID)
	}
	if !event.OpenForSales() {
		return nil, fmt.Errorf("%w: event %s is %s", status.ErrInvalidState, event.ID, event.Status)
	}

	tt := &models.TicketType{
		ID:            utils.NewID(),
		EventID:       event.ID,
		Name:          in.Name,
		UnitPrice:     in.UnitPrice,
		TotalQuantity: in.TotalQuantity,
		Refundable:    in.Refundable,
		CreatedAt:     c.now().UTC(),
	}
	if err := c.inventory.CreateTicketType(ctx, tt); err != nil {
		return nil, err
	}

	slog.Info("ticket type created", "ticket_type_id", tt.ID, "event_id", tt.EventID, "total", tt.TotalQuantity)
	return tt, nil
}

type EventInput struct {
	Title     string    `json:"title"`
	Venue     string    `json:"venue"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CreateEvent stores a draft event owned by organizerID.
func (c *Catalog) CreateEvent(ctx context.Context, organizerID string, in EventInput) (*models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case organizerID == "":
		return nil, fmt.Errorf("%w: organizer is required", status.ErrInvalidInput)
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", status.ErrInvalidInput)
	case !in.EndTime.IsZero() && in.EndTime.Before(in.StartTime):
		return nil, fmt.Errorf("%w: event ends before it starts", status.ErrInvalidInput)
	}

	event := &models.Event{
		ID:          utils.NewID(),
		OrganizerID: organizerID,
		Title:       in.Title,
		Venue:       strings.TrimSpace(in.Venue),
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Status:      models.EventDraft,
	}
	if err := c.events.SaveEvent(ctx, event); err != nil {
		return nil, err
	}

	slog.Info("event created", "event_id", event.ID, "organizer_id", organizerID)
	return event, nil
}

func (c *Catalog) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return c.events.GetEvent(ctx, eventID)
}

// PublishEvent moves a draft event owned by organizerID to published.
func (c *Catalog) PublishEvent(ctx context.Context, organizerID, eventID string) (*models.Event, error) {
	event, err := c.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, fmt.Errorf("%w: event %s belongs to another organizer", status.ErrForbidden, event.ID)
	}
	if event.Status != models.EventDraft {
		return nil, fmt.Errorf("%w: event %s is %s", status.ErrInvalidState, event.ID, event.Status)
	}

	event.Status = models.EventPublished
	if err := c.events.SaveEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

package models

import (
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

type Event struct {
	ID          string      `json:"id"`
	OrganizerID string      `json:"organizer_id"`
	Title       string      `json:"title"`
	Venue       string      `json:"venue"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Status      EventStatus `json:"status"` // draft, published, completed, cancelled
}

// OpenForSales reports whether tickets of the event can still be purchased.
func (e Event) OpenForSales() bool {
	return e.Status == EventDraft || e.Status == EventPublished
}

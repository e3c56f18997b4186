package handlers

import (
	"net/http"
	"time"

	"eventhub/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type RevenueHandler struct {
	ledger *services.RevenueLedger
}

func NewRevenueHandler(ledger *services.RevenueLedger) *RevenueHandler {
	return &RevenueHandler{ledger: ledger}
}

// scope reads event_id and month=YYYY-MM from the query string.
func scope(e *core.RequestEvent, organizerID string) (services.Scope, error) {
	q := e.Request.URL.Query()
	s := services.Scope{OrganizerID: organizerID}

	if month := q.Get("month"); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return s, apis.NewBadRequestError("month must be formatted as YYYY-MM", nil)
		}
		s = services.MonthScope(organizerID, t)
	}
	s.EventID = q.Get("event_id")
	return s, nil
}

func (h *RevenueHandler) Summary(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}
	s, err := scope(e, organizerID)
	if err != nil {
		return err
	}

	summary, err := h.ledger.Summary(e.Request.Context(), s)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, summary)
}

func (h *RevenueHandler) ByEvent(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}
	s, err := scope(e, organizerID)
	if err != nil {
		return err
	}

	rows, err := h.ledger.ByEvent(e.Request.Context(), s)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": rows,
		"total": len(rows),
	})
}

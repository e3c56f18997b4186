package handlers

import (
	"net/http"

	"eventhub/internal/services"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CatalogHandler struct {
	catalog  *services.Catalog
	pipeline *services.PurchasePipeline
}

func NewCatalogHandler(catalog *services.Catalog, pipeline *services.PurchasePipeline) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, pipeline: pipeline}
}

func (h *CatalogHandler) CreateEvent(e *core.RequestEvent) error {
	p, err := requireRole(e, models.RoleOrganizer)
	if err != nil {
		return err
	}

	var req services.EventInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := h.catalog.CreateEvent(e.Request.Context(), p.ID, req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, event)
}

func (h *CatalogHandler) GetEvent(e *core.RequestEvent) error {
	event, err := h.catalog.GetEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, event)
}

func (h *CatalogHandler) PublishEvent(e *core.RequestEvent) error {
	p, err := requireRole(e, models.RoleOrganizer)
	if err != nil {
		return err
	}

	event, err := h.catalog.PublishEvent(e.Request.Context(), p.ID, e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, event)
}

// CompleteEvent closes sales and marks active tickets attended. Admins may
// complete any event.
func (h *CatalogHandler) CompleteEvent(e *core.RequestEvent) error {
	p, err := requireRole(e, models.RoleOrganizer, models.RoleAdmin)
	if err != nil {
		return err
	}
	organizerID := p.ID
	if p.Role == models.RoleAdmin {
		organizerID = ""
	}

	eventID := e.Request.PathValue("eventId")
	attended, err := h.pipeline.CompleteEvent(e.Request.Context(), organizerID, eventID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"attended": attended,
	})
}

func (h *CatalogHandler) ListTicketTypes(e *core.RequestEvent) error {
	types, err := h.catalog.ListByEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(err)
	}

	items := make([]map[string]any, 0, len(types))
	for _, tt := range types {
		items = append(items, map[string]any{
			"id":             tt.ID,
			"event_id":       tt.EventID,
			"name":           tt.Name,
			"unit_price":     tt.UnitPrice,
			"total_quantity": tt.TotalQuantity,
			"available":      tt.Available(),
			"refundable":     tt.Refundable,
		})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (h *CatalogHandler) CreateTicketType(e *core.RequestEvent) error {
	p, err := requireRole(e, models.RoleOrganizer)
	if err != nil {
		return err
	}

	var req services.TicketTypeInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	req.EventID = e.Request.PathValue("eventId")

	tt, err := h.catalog.CreateTicketType(e.Request.Context(), p.ID, req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, tt)
}

func (h *CatalogHandler) Availability(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	available, err := h.catalog.AvailableSeats(e.Request.Context(), id)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"ticket_type_id": id,
		"available":      available,
	})
}

package handlers

import (
	"net/http"

	"eventhub/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CartHandler struct {
	carts *services.CartStore
}

func NewCartHandler(carts *services.CartStore) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) GetCart(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	snap := h.carts.Snapshot(p.ID)
	return e.JSON(http.StatusOK, map[string]any{
		"items": snap.Items,
		"total": snap.Total(),
	})
}

// AddItem adds a ticket type to the cart. Quantities are clamped to what is
// purchasable, so the returned line may hold fewer seats than requested.
func (h *CartHandler) AddItem(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		TicketTypeID string `json:"ticket_type_id"`
		Quantity     int    `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketTypeID == "" {
		return apis.NewBadRequestError("ticket_type_id is required", nil)
	}

	line, err := h.carts.AddItem(e.Request.Context(), p.ID, req.TicketTypeID, req.Quantity)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"item":      line,
		"requested": req.Quantity,
		"clamped":   line.Quantity != req.Quantity,
	})
}

func (h *CartHandler) UpdateItem(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	line, err := h.carts.UpdateQuantity(p.ID, e.Request.PathValue("itemId"), req.Quantity)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, line)
}

func (h *CartHandler) RemoveItem(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	if err := h.carts.RemoveItem(p.ID, e.Request.PathValue("itemId")); err != nil {
		return apiError(err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *CartHandler) Clear(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	h.carts.Clear(p.ID)
	return e.NoContent(http.StatusNoContent)
}
